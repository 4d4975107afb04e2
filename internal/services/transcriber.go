package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Sabyr2003/whatsapp-bot-store/internal/utils"
)

// Transcriber converts a voice note, addressed by its media URL, into text.
type Transcriber interface {
	TranscribeURL(ctx context.Context, mediaURL string) (string, error)
}

// WhisperTranscriber posts audio to the local Whisper HTTP service.
type WhisperTranscriber struct {
	endpoint string
	client   *http.Client
	media    *http.Client
}

func NewWhisperTranscriber(endpoint string, timeout time.Duration) *WhisperTranscriber {
	return &WhisperTranscriber{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		media:    &http.Client{Timeout: timeout},
	}
}

// TranscribeURL downloads the voice note to a temp file, ships it to the
// transcription service and returns the recognized text. The temp file is
// removed whether or not transcription succeeds.
func (t *WhisperTranscriber) TranscribeURL(ctx context.Context, mediaURL string) (string, error) {
	audio, err := t.download(ctx, mediaURL)
	if err != nil {
		return "", fmt.Errorf("скачивание голосового сообщения: %w", err)
	}

	tmp, err := os.CreateTemp("", "voice_*.ogg")
	if err != nil {
		return "", fmt.Errorf("создание временного файла: %w", err)
	}
	audioPath := tmp.Name()
	defer os.Remove(audioPath)

	if _, err := tmp.Write(audio); err != nil {
		tmp.Close()
		return "", fmt.Errorf("запись временного файла: %w", err)
	}
	tmp.Close()

	text, err := t.transcribeFile(ctx, audioPath)
	if err != nil {
		if isConnectionRefused(err) {
			utils.LogError(ctx, "сервис транскрибации недоступен", err,
				slog.String("endpoint", t.endpoint),
			)
		}
		return "", err
	}

	utils.LogInfo(ctx, "voice note transcribed", slog.String("text", text))
	return text, nil
}

func (t *WhisperTranscriber) download(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.media.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("media download status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (t *WhisperTranscriber) transcribeFile(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", err
	}
	if err := form.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("transcribe status %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("некорректный ответ от сервера транскрибации: %w", err)
	}
	if parsed.Text == "" {
		return "", errors.New("некорректный ответ от сервера транскрибации")
	}
	return parsed.Text, nil
}

func isConnectionRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
