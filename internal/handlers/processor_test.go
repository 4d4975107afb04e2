package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sabyr2003/whatsapp-bot-store/internal/container"
	"github.com/Sabyr2003/whatsapp-bot-store/internal/models"
	"github.com/Sabyr2003/whatsapp-bot-store/internal/services"
	"github.com/Sabyr2003/whatsapp-bot-store/pkg/locales"
)

type savedOrder struct {
	userID        string
	product       models.Product
	address       string
	deliveryPrice int
}

type fakeCatalog struct {
	products []models.Product
	saved    []savedOrder
	saveErr  error
}

func (f *fakeCatalog) GetShopInfo(context.Context) (string, error) {
	return "Магазин инструментов.", nil
}

func (f *fakeCatalog) ListProducts(context.Context) ([]models.Product, error) {
	return f.products, nil
}

func (f *fakeCatalog) ListBrandsAndCategories(context.Context) ([]string, []string, error) {
	return nil, nil, nil
}

func (f *fakeCatalog) ListByKeyword(_ context.Context, keywords []string) ([]models.Product, error) {
	return f.products, nil
}

func (f *fakeCatalog) SaveOrder(_ context.Context, userID string, product models.Product, address string, deliveryPrice int) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, savedOrder{userID, product, address, deliveryPrice})
	return nil
}

type fakeQuoter struct {
	quote models.DeliveryQuote
	err   error
}

func (f *fakeQuoter) Quote(context.Context, string) (models.DeliveryQuote, error) {
	return f.quote, f.err
}

type fakeResponder struct {
	reply *models.AIReply
	err   error
}

func (f *fakeResponder) Respond(context.Context, models.Session, string) (*models.AIReply, error) {
	return f.reply, f.err
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) TranscribeURL(context.Context, string) (string, error) {
	return f.text, f.err
}

var testProducts = []models.Product{
	{ID: 1, Name: "Drill X", Brand: "Makita", Price: 10000, Description: "Аккумуляторный шуруповерт", Category: "шуруповерты"},
	{ID: 2, Name: "Drill Y", Brand: "Bosch", Price: 15000, Description: "Сетевой шуруповерт", Category: "шуруповерты"},
	{ID: 3, Name: "Drill Z", Brand: "DeWalt", Price: 20000, Description: "Ударный шуруповерт", Category: "шуруповерты"},
}

func newTestProcessor(catalog *fakeCatalog, quoter *fakeQuoter, responder *fakeResponder, transcriber *fakeTranscriber) (*MessageProcessor, *container.Container) {
	if catalog == nil {
		catalog = &fakeCatalog{products: testProducts}
	}
	if quoter == nil {
		quoter = &fakeQuoter{quote: models.DeliveryQuote{Km: 4, Price: 1300}}
	}
	if responder == nil {
		responder = &fakeResponder{reply: &models.AIReply{Text: "Чем могу помочь?"}}
	}
	if transcriber == nil {
		transcriber = &fakeTranscriber{text: "привет"}
	}

	c := &container.Container{
		Sessions:    services.NewMemorySessionStore(),
		Catalog:     catalog,
		Delivery:    quoter,
		Responder:   responder,
		Transcriber: transcriber,
	}
	return NewMessageProcessor(c), c
}

func textMsg(from, body string) models.InboundMessage {
	return models.InboundMessage{From: from, Body: body, Type: "text"}
}

func TestOrderIntent(t *testing.T) {
	p, _ := newTestProcessor(nil, nil, nil, nil)

	replies := p.HandleMessage(context.Background(), textMsg("77001", "Хочу заказать дрель"))
	require.Len(t, replies, 1)
	assert.Equal(t, locales.Get().Intents[0].Reply, replies[0])
}

func TestOrderIntentKeepsStageIdle(t *testing.T) {
	p, c := newTestProcessor(nil, nil, nil, nil)

	p.HandleMessage(context.Background(), textMsg("77001", "хочу заказать"))
	assert.Equal(t, models.StageIdle, c.Sessions.Get("77001").Stage)
}

func TestGreetingIntent(t *testing.T) {
	p, _ := newTestProcessor(nil, nil, nil, nil)

	replies := p.HandleMessage(context.Background(), textMsg("77001", "Привет"))
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "Добро пожаловать")
}

func TestSitePaymentShortCircuits(t *testing.T) {
	p, c := newTestProcessor(nil, nil, nil, nil)

	stage := models.StageAwaitingAddress
	c.Sessions.Update("77001", models.SessionUpdate{Stage: &stage})

	replies := p.HandleMessage(context.Background(), textMsg("77001", "оплата на сайте"))
	require.Len(t, replies, 1)
	assert.Equal(t, locales.Get().SitePayment.Reply, replies[0])
	// The stage is untouched.
	assert.Equal(t, models.StageAwaitingAddress, c.Sessions.Get("77001").Stage)
}

func TestConfirmationMovesToAddress(t *testing.T) {
	p, c := newTestProcessor(nil, nil, nil, nil)

	stage := models.StageAwaitingConfirmation
	drill := testProducts[0]
	c.Sessions.Update("77001", models.SessionUpdate{Stage: &stage, SelectedProduct: &drill})

	replies := p.HandleMessage(context.Background(), textMsg("77001", "давай"))
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "Drill X")
	assert.Equal(t, models.StageAwaitingAddress, c.Sessions.Get("77001").Stage)
}

func TestAddressProducesReceipt(t *testing.T) {
	catalog := &fakeCatalog{products: testProducts}
	p, c := newTestProcessor(catalog, &fakeQuoter{quote: models.DeliveryQuote{Km: 4, Price: 1300}}, nil, nil)

	stage := models.StageAwaitingAddress
	drill := testProducts[0]
	c.Sessions.Update("77001", models.SessionUpdate{Stage: &stage, SelectedProduct: &drill})

	replies := p.HandleMessage(context.Background(), textMsg("77001", "проспект Абая 10"))
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "1300")
	assert.Contains(t, replies[0], strconv.Itoa(10000+1300))
	assert.Equal(t, models.StageAwaitingPaymentMethod, c.Sessions.Get("77001").Stage)

	require.Len(t, catalog.saved, 1)
	assert.Equal(t, "проспект Абая 10", catalog.saved[0].address)
	assert.Equal(t, 1300, catalog.saved[0].deliveryPrice)
}

func TestAddressQuoteFailureKeepsStage(t *testing.T) {
	quoter := &fakeQuoter{err: &models.QuoteError{Kind: models.QuoteNotFound, Message: "адрес не найден"}}
	p, c := newTestProcessor(nil, quoter, nil, nil)

	stage := models.StageAwaitingAddress
	drill := testProducts[0]
	c.Sessions.Update("77001", models.SessionUpdate{Stage: &stage, SelectedProduct: &drill})

	replies := p.HandleMessage(context.Background(), textMsg("77001", "непонятный адрес 999"))
	require.Len(t, replies, 1)
	assert.Equal(t, locales.Get().OrderFlow.QuoteFailed, replies[0])
	assert.Equal(t, models.StageAwaitingAddress, c.Sessions.Get("77001").Stage)
}

func TestAddressSaveFailureKeepsStage(t *testing.T) {
	catalog := &fakeCatalog{products: testProducts, saveErr: errors.New("insert failed")}
	p, c := newTestProcessor(catalog, nil, nil, nil)

	stage := models.StageAwaitingAddress
	drill := testProducts[0]
	c.Sessions.Update("77001", models.SessionUpdate{Stage: &stage, SelectedProduct: &drill})

	replies := p.HandleMessage(context.Background(), textMsg("77001", "проспект Абая 10"))
	require.Len(t, replies, 1)
	assert.Equal(t, locales.Get().OrderFlow.SaveFailed, replies[0])
	assert.Equal(t, models.StageAwaitingAddress, c.Sessions.Get("77001").Stage)
}

func TestCategoryMenuAndNumericSelection(t *testing.T) {
	p, c := newTestProcessor(nil, nil, nil, nil)
	ctx := context.Background()

	replies := p.HandleMessage(ctx, textMsg("77001", "шуруповерт"))
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], locales.Get().CategoryMenu.Header)
	assert.Contains(t, replies[0], "1. 🔹 Drill X")
	require.Len(t, c.Sessions.Get("77001").ProductOptions, 3)

	replies = p.HandleMessage(ctx, textMsg("77001", "2"))
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "Drill Y")

	sess := c.Sessions.Get("77001")
	assert.Equal(t, models.StageAwaitingConfirmation, sess.Stage)
	require.NotNil(t, sess.SelectedProduct)
	assert.Equal(t, 2, sess.SelectedProduct.ID)
}

func TestNumericSelectionOutOfRange(t *testing.T) {
	p, c := newTestProcessor(nil, nil, nil, nil)
	ctx := context.Background()

	c.Sessions.Update("77001", models.SessionUpdate{ProductOptions: testProducts})

	replies := p.HandleMessage(ctx, textMsg("77001", "5"))
	require.Len(t, replies, 1)
	assert.Equal(t, fmt.Sprintf(locales.Get().OrderFlow.InvalidOption, 3), replies[0])
	assert.Nil(t, c.Sessions.Get("77001").SelectedProduct)
}

func TestPaymentCashClearsSession(t *testing.T) {
	p, c := newTestProcessor(nil, nil, nil, nil)

	stage := models.StageAwaitingPaymentMethod
	drill := testProducts[0]
	c.Sessions.Update("77001", models.SessionUpdate{Stage: &stage, SelectedProduct: &drill})

	replies := p.HandleMessage(context.Background(), textMsg("77001", "наличными"))
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "наличными")

	sess := c.Sessions.Get("77001")
	assert.Equal(t, models.StageIdle, sess.Stage)
	assert.Nil(t, sess.SelectedProduct)
}

func TestPaymentInstallmentFlow(t *testing.T) {
	p, c := newTestProcessor(nil, nil, nil, nil)
	ctx := context.Background()

	stage := models.StageAwaitingPaymentMethod
	c.Sessions.Update("77001", models.SessionUpdate{Stage: &stage})

	replies := p.HandleMessage(ctx, textMsg("77001", "в рассрочку"))
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "ФИО")
	assert.Equal(t, models.StageAwaitingCreditInfo, c.Sessions.Get("77001").Stage)

	replies = p.HandleMessage(ctx, textMsg("77001", "Иванов Иван, ИИН 123456789012"))
	require.Len(t, replies, 1)
	assert.Equal(t, locales.Get().CreditInfoReceived, replies[0])
	assert.Equal(t, models.StageIdle, c.Sessions.Get("77001").Stage)
}

func TestPaymentUnknownMethodReprompts(t *testing.T) {
	p, c := newTestProcessor(nil, nil, nil, nil)

	stage := models.StageAwaitingPaymentMethod
	c.Sessions.Update("77001", models.SessionUpdate{Stage: &stage})

	replies := p.HandleMessage(context.Background(), textMsg("77001", "бартером"))
	require.Len(t, replies, 1)
	assert.Equal(t, locales.Get().PaymentReprompt, replies[0])
	assert.Equal(t, models.StageAwaitingPaymentMethod, c.Sessions.Get("77001").Stage)
}

func TestResetClearsSession(t *testing.T) {
	p, c := newTestProcessor(nil, nil, nil, nil)

	stage := models.StageAwaitingAddress
	drill := testProducts[0]
	c.Sessions.Update("77001", models.SessionUpdate{Stage: &stage, SelectedProduct: &drill})

	replies := p.HandleMessage(context.Background(), textMsg("77001", "сброс"))
	require.Len(t, replies, 1)
	assert.Equal(t, locales.Get().Reset.Reply, replies[0])

	sess := c.Sessions.Get("77001")
	assert.Equal(t, models.StageIdle, sess.Stage)
	assert.Nil(t, sess.SelectedProduct)
}

func TestRecommendationPromotion(t *testing.T) {
	drill := testProducts[2]
	responder := &fakeResponder{reply: &models.AIReply{Text: "Рекомендую Drill Z.", Recommended: &drill}}
	p, c := newTestProcessor(nil, nil, responder, nil)
	ctx := context.Background()

	replies := p.HandleMessage(ctx, textMsg("77001", "посоветуй что-нибудь мощное"))
	require.Len(t, replies, 1)
	assert.Equal(t, "Рекомендую Drill Z.", replies[0])
	require.NotNil(t, c.Sessions.Get("77001").RecommendedProduct)

	replies = p.HandleMessage(ctx, textMsg("77001", "да"))
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "Drill Z")

	sess := c.Sessions.Get("77001")
	assert.Equal(t, models.StageAwaitingAddress, sess.Stage)
	require.NotNil(t, sess.SelectedProduct)
	assert.Equal(t, 3, sess.SelectedProduct.ID)
}

func TestFallbackErrorReply(t *testing.T) {
	responder := &fakeResponder{err: errors.New("api quota exceeded")}
	p, _ := newTestProcessor(nil, nil, responder, nil)

	replies := p.HandleMessage(context.Background(), textMsg("77001", "посоветуй что-нибудь мощное"))
	require.Len(t, replies, 1)
	assert.Equal(t, locales.Get().FallbackError, replies[0])
}

func TestVoiceMessage(t *testing.T) {
	p, _ := newTestProcessor(nil, nil, nil, &fakeTranscriber{text: "привет"})

	msg := models.InboundMessage{From: "77001", Type: "ptt", HasMedia: true, MediaURL: "https://example.com/v.ogg"}
	replies := p.HandleMessage(context.Background(), msg)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "🎧 Вы сказали: \"привет\"")
	assert.Contains(t, replies[0], "Добро пожаловать")
}

func TestVoiceTranscriptionError(t *testing.T) {
	p, _ := newTestProcessor(nil, nil, nil, &fakeTranscriber{err: errors.New("connection refused")})

	msg := models.InboundMessage{From: "77001", Type: "voice", HasMedia: true, MediaURL: "https://example.com/v.ogg"}
	replies := p.HandleMessage(context.Background(), msg)
	require.Len(t, replies, 1)
	assert.Equal(t, locales.Get().Voice.Error, replies[0])
}

func TestUserLocksReleasedAfterHandling(t *testing.T) {
	p, _ := newTestProcessor(nil, nil, nil, nil)
	ctx := context.Background()

	p.HandleMessage(ctx, textMsg("77001", "привет"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.HandleMessage(ctx, textMsg("77002", "привет"))
		}()
	}
	wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Empty(t, p.userLocks, "lock entries must be dropped once no message is in flight")
}

func TestMissingSenderRejected(t *testing.T) {
	p, _ := newTestProcessor(nil, nil, nil, nil)

	replies := p.HandleMessage(context.Background(), textMsg("", "привет"))
	assert.Nil(t, replies)
}
