package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sabyr2003/whatsapp-bot-store/internal/container"
	"github.com/Sabyr2003/whatsapp-bot-store/internal/models"
	"github.com/Sabyr2003/whatsapp-bot-store/internal/utils"
	"github.com/Sabyr2003/whatsapp-bot-store/pkg/locales"
)

var numericOnlyRe = regexp.MustCompile(`^\d+$`)

var messagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "messages_processed_total",
	Help: "Inbound messages by outcome.",
}, []string{"status"})

var messageDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "message_processing_duration_seconds",
	Help:    "Time spent handling one inbound message.",
	Buckets: prometheus.DefBuckets,
})

// MessageProcessor handles the core message logic shared between the
// webhook and WebSocket handlers: fixed-phrase intents, the order
// state machine, and the AI fallback.
type MessageProcessor struct {
	container *container.Container
	loc       *locales.Locales

	// Per-user serialization: one in-flight flow per user id, so a
	// second message cannot observe partial state mid-flow. Entries are
	// reference counted and removed once the last holder releases.
	mu        sync.Mutex
	userLocks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewMessageProcessor creates a new message processor.
func NewMessageProcessor(c *container.Container) *MessageProcessor {
	return &MessageProcessor{
		container: c,
		loc:       locales.Get(),
		userLocks: make(map[string]*userLock),
	}
}

// HandleMessage processes one inbound message and returns the replies
// to send. It never fails: every error becomes a localized fallback.
func (p *MessageProcessor) HandleMessage(ctx context.Context, msg models.InboundMessage) []string {
	unlock := p.lockUser(msg.From)
	defer unlock()

	start := time.Now()
	status := "success"
	defer func() {
		messageDuration.Observe(time.Since(start).Seconds())
		messagesProcessed.WithLabelValues(status).Inc()
		utils.LogInfo(ctx, "message processing completed",
			slog.String("from", msg.From),
			slog.String("type", msg.Type),
			slog.String("status", status),
			slog.Float64("duration_seconds", time.Since(start).Seconds()),
		)
	}()

	if msg.From == "" || (msg.Body == "" && !msg.IsVoice()) {
		status = "validation_error"
		return nil
	}

	// Site-payment phrases short-circuit everything, whatever the stage.
	if containsAny(strings.ToLower(msg.Body), p.loc.SitePayment.Phrases) {
		return []string{p.loc.SitePayment.Reply}
	}

	if msg.IsVoice() {
		reply, ok := p.handleVoice(ctx, msg)
		if !ok {
			status = "voice_error"
		}
		return []string{reply}
	}

	return []string{p.handleText(ctx, msg.From, msg.Body)}
}

// handleVoice transcribes the note and recurses into text handling
// with the transcript as the message body.
func (p *MessageProcessor) handleVoice(ctx context.Context, msg models.InboundMessage) (string, bool) {
	transcript, err := p.container.Transcriber.TranscribeURL(ctx, msg.MediaURL)
	if err != nil {
		utils.LogError(ctx, "ошибка распознавания голоса", err, slog.String("from", msg.From))
		return p.loc.Voice.Error, false
	}

	utils.LogInfo(ctx, "voice transcript", slog.String("text", transcript))
	reply := p.handleText(ctx, msg.From, transcript)
	return fmt.Sprintf(p.loc.Voice.Prefix, transcript, reply), true
}

// handleText runs the conversation transition rules in priority order;
// the first matching rule wins.
func (p *MessageProcessor) handleText(ctx context.Context, userID, body string) string {
	text := strings.ToLower(strings.TrimSpace(body))
	sess := p.container.Sessions.Get(userID)
	p.container.Sessions.AppendHistory(userID, "user", text)

	// Explicit reset clears the whole session.
	for _, phrase := range p.loc.Reset.Phrases {
		if text == phrase {
			p.container.Sessions.Clear(userID)
			return p.loc.Reset.Reply
		}
	}

	// Fixed-phrase intents, in declared group order.
	for _, intent := range p.loc.Intents {
		if containsAny(text, intent.Phrases) {
			return intent.Reply
		}
	}

	// Numeric pick from an active menu.
	if numericOnlyRe.MatchString(text) && len(sess.ProductOptions) > 0 {
		return p.handleMenuSelection(userID, sess, text)
	}

	// A recommendation exists but nothing is selected yet: an
	// affirmative promotes it straight to the address step.
	if containsAny(text, p.loc.OrderFlow.RecommendPhrases) && sess.SelectedProduct == nil && sess.RecommendedProduct != nil {
		stage := models.StageAwaitingAddress
		p.container.Sessions.Update(userID, models.SessionUpdate{
			SelectedProduct: sess.RecommendedProduct,
			Stage:           &stage,
		})
		return fmt.Sprintf(p.loc.OrderFlow.RecommendAccepted, sess.RecommendedProduct.Name, sess.RecommendedProduct.Price)
	}

	if sess.Stage == models.StageAwaitingConfirmation && containsAny(text, p.loc.OrderFlow.ConfirmPhrases) {
		if sess.SelectedProduct == nil {
			return p.loc.OrderFlow.ClarifyProduct
		}
		stage := models.StageAwaitingAddress
		p.container.Sessions.Update(userID, models.SessionUpdate{Stage: &stage})
		return fmt.Sprintf(p.loc.OrderFlow.ConfirmAccepted, sess.SelectedProduct.Name)
	}

	if sess.Stage == models.StageAwaitingAddress {
		return p.handleAddress(ctx, userID, sess, body)
	}

	if sess.Stage == models.StageAwaitingPaymentMethod {
		return p.handlePaymentMethod(userID, text)
	}

	if sess.Stage == models.StageAwaitingCreditInfo {
		p.container.Sessions.Clear(userID)
		return p.loc.CreditInfoReceived
	}

	// Category keyword: show a numbered menu from the catalog.
	if containsAny(text, p.loc.CategoryMenu.Keywords) {
		return p.handleCategoryMenu(ctx, userID)
	}

	return p.handleFallback(ctx, userID, sess, body)
}

func (p *MessageProcessor) handleMenuSelection(userID string, sess models.Session, text string) string {
	n, _ := strconv.Atoi(text)
	index := n - 1
	if index < 0 || index >= len(sess.ProductOptions) {
		return fmt.Sprintf(p.loc.OrderFlow.InvalidOption, len(sess.ProductOptions))
	}

	selected := sess.ProductOptions[index]
	stage := models.StageAwaitingConfirmation
	p.container.Sessions.Update(userID, models.SessionUpdate{
		SelectedProduct: &selected,
		Stage:           &stage,
	})
	return fmt.Sprintf(p.loc.OrderFlow.Selected, selected.Name, selected.Price, selected.Description)
}

// handleAddress quotes delivery for the message body and persists the
// order. Any failure keeps the stage so the user can retry.
func (p *MessageProcessor) handleAddress(ctx context.Context, userID string, sess models.Session, body string) string {
	if sess.SelectedProduct == nil {
		return p.loc.OrderFlow.ClarifyProduct
	}

	address := strings.TrimSpace(body)
	quote, err := p.container.Delivery.Quote(ctx, address)
	if err != nil {
		utils.LogError(ctx, "ошибка при расчёте доставки", err,
			slog.String("from", userID),
			slog.String("address", address),
		)
		return p.loc.OrderFlow.QuoteFailed
	}

	saveErr := utils.RetryWithBackoff(ctx, func() error {
		return p.container.Catalog.SaveOrder(ctx, userID, *sess.SelectedProduct, address, quote.Price)
	}, utils.DefaultRetryConfig())
	if saveErr != nil {
		utils.LogError(ctx, "не удалось сохранить заказ", saveErr, slog.String("from", userID))
		return p.loc.OrderFlow.SaveFailed
	}

	stage := models.StageAwaitingPaymentMethod
	p.container.Sessions.Update(userID, models.SessionUpdate{Stage: &stage})

	total := sess.SelectedProduct.Price + quote.Price
	return fmt.Sprintf(p.loc.OrderFlow.Receipt,
		address,
		sess.SelectedProduct.Name, sess.SelectedProduct.Price,
		quote.Price, quote.Km,
		total,
	)
}

func (p *MessageProcessor) handlePaymentMethod(userID, text string) string {
	for _, method := range p.loc.PaymentMethods {
		if !containsAny(text, method.Phrases) {
			continue
		}
		if method.Terminal {
			p.container.Sessions.Clear(userID)
		} else {
			stage := models.StageAwaitingCreditInfo
			p.container.Sessions.Update(userID, models.SessionUpdate{Stage: &stage})
		}
		return method.Reply
	}
	return p.loc.PaymentReprompt
}

func (p *MessageProcessor) handleCategoryMenu(ctx context.Context, userID string) string {
	options, err := p.container.Catalog.ListByKeyword(ctx, p.loc.CategoryMenu.Keywords)
	if err != nil {
		utils.LogError(ctx, "не удалось получить товары категории", err)
		return p.loc.CategoryMenu.Empty
	}
	if len(options) == 0 {
		return p.loc.CategoryMenu.Empty
	}

	p.container.Sessions.Update(userID, models.SessionUpdate{ProductOptions: options})

	lines := make([]string, 0, len(options))
	for i, opt := range options {
		lines = append(lines, fmt.Sprintf(p.loc.CategoryMenu.Item, i+1, opt.Name, opt.Price))
	}
	return p.loc.CategoryMenu.Header + "\n\n" + strings.Join(lines, "\n") + "\n\n" + p.loc.CategoryMenu.Footer
}

func (p *MessageProcessor) handleFallback(ctx context.Context, userID string, sess models.Session, body string) string {
	reply, err := p.container.Responder.Respond(ctx, sess, body)
	if err != nil {
		utils.LogError(ctx, "AI-респондер недоступен", err, slog.String("from", userID))
		return p.loc.FallbackError
	}

	p.container.Sessions.AppendHistory(userID, "assistant", reply.Text)
	if reply.Recommended != nil {
		p.container.Sessions.Update(userID, models.SessionUpdate{RecommendedProduct: reply.Recommended})
	}
	return reply.Text
}

func (p *MessageProcessor) lockUser(userID string) func() {
	p.mu.Lock()
	lock, ok := p.userLocks[userID]
	if !ok {
		lock = &userLock{}
		p.userLocks[userID] = lock
	}
	lock.refs++
	p.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		p.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(p.userLocks, userID)
		}
		p.mu.Unlock()
	}
}

func containsAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}
