package models

// ═══════════════════════════════════════════════════════════
// TRANSPORT REQUEST/RESPONSE MODELS
// ═══════════════════════════════════════════════════════════

// Voice note message types delivered by the chat platform.
var VoiceMessageTypes = map[string]bool{
	"audio": true,
	"voice": true,
	"ptt":   true,
}

// InboundMessage is one message event from the messaging transport.
// From is the platform user identifier (phone number).
type InboundMessage struct {
	From     string `json:"from"`
	Body     string `json:"body"`
	Type     string `json:"type"`
	HasMedia bool   `json:"has_media"`
	MediaURL string `json:"media_url,omitempty"`
}

// IsVoice reports whether the message carries a voice note.
func (m *InboundMessage) IsVoice() bool {
	return m.HasMedia && VoiceMessageTypes[m.Type]
}

// WebhookResponse carries the replies to send back to the user.
type WebhookResponse struct {
	Replies []string `json:"replies"`
}

// AIReply is the result of the text-understanding fallback responder.
type AIReply struct {
	Text        string   `json:"text"`
	Recommended *Product `json:"recommended,omitempty"`
}

// ═══════════════════════════════════════════════════════════
// ERROR MODELS
// ═══════════════════════════════════════════════════════════

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
