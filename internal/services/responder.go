package services

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"github.com/Sabyr2003/whatsapp-bot-store/internal/config"
	"github.com/Sabyr2003/whatsapp-bot-store/internal/models"
	"github.com/Sabyr2003/whatsapp-bot-store/internal/utils"
)

// AIResponder is the text-understanding fallback: it answers messages
// the state machine could not, and may recognize a product to recommend.
type AIResponder interface {
	Respond(ctx context.Context, sess models.Session, message string) (*models.AIReply, error)
}

var (
	numberRe         = regexp.MustCompile(`\b(\d+)\b`)
	houseDigitsRe    = regexp.MustCompile(`\d{1,3}`)
	addressWordsRe   = regexp.MustCompile(`улица|проспект|микрорайон|дом|корпус|квартал`)
	orderPhraseWords = []string{
		"закажу", "оформить", "заказать", "хочу", "давай", "возьми",
		"второй", "первый", "1", "2", "3", "окей", "да", "ага", "закажем",
	}
)

// GeminiResponder resolves messages locally against the catalog first
// (numeric pick, selection follow-up, address quote, brand/category
// menu, ranked product match) and only then asks the language model.
type GeminiResponder struct {
	client     *genai.Client
	model      string
	temp       float32
	maxTokens  int
	catalog    Catalog
	matcher    *Matcher
	quoter     Quoter
	normalizer *AddressNormalizer
	prompts    *PromptManager
	baseFare   int
	perKmFare  int
}

func NewGeminiResponder(ctx context.Context, cfg *config.Config, catalog Catalog, matcher *Matcher, quoter Quoter, normalizer *AddressNormalizer) (*GeminiResponder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("создание Gemini клиента: %w", err)
	}

	return &GeminiResponder{
		client:     client,
		model:      cfg.GeminiModel,
		temp:       cfg.GeminiTemperature,
		maxTokens:  cfg.GeminiMaxOutputTokens,
		catalog:    catalog,
		matcher:    matcher,
		quoter:     quoter,
		normalizer: normalizer,
		prompts:    NewPromptManager(),
		baseFare:   cfg.DeliveryBaseFare,
		perKmFare:  cfg.DeliveryPerKmFare,
	}, nil
}

func (r *GeminiResponder) Respond(ctx context.Context, sess models.Session, message string) (*models.AIReply, error) {
	text := strings.ToLower(message)

	products, err := r.catalog.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("загрузка каталога: %w", err)
	}

	// Bare number: pick from the full catalog list.
	if m := numberRe.FindStringSubmatch(text); m != nil {
		index, _ := strconv.Atoi(m[1])
		index--
		if index >= 0 && index < len(products) {
			p := products[index]
			return &models.AIReply{
				Text:        fmt.Sprintf("✅ Вы выбрали: %s (%d₸). Хотите оформить заказ или узнать больше?", p.Name, p.Price),
				Recommended: &p,
			}, nil
		}
	}

	// A product is already selected and the user pushes the order
	// forward without an address: ask for one.
	if sess.SelectedProduct != nil && containsAny(text, orderPhraseWords) && !looksLikeAddress(text) {
		return &models.AIReply{
			Text:        fmt.Sprintf("✅ Выбранный товар: %s за %d₸. Уточните, пожалуйста, адрес доставки.", sess.SelectedProduct.Name, sess.SelectedProduct.Price),
			Recommended: sess.SelectedProduct,
		}, nil
	}

	// Address-looking message: quote delivery inline.
	if looksLikeAddress(text) {
		if candidates := r.normalizer.Variants(message); len(candidates) > 0 {
			if quote, err := r.quoter.Quote(ctx, candidates[0]); err == nil {
				productLine := ""
				if sess.SelectedProduct != nil {
					productLine = fmt.Sprintf("✅ Выбранный товар: %s за %d₸.\n", sess.SelectedProduct.Name, sess.SelectedProduct.Price)
				}
				return &models.AIReply{
					Text: fmt.Sprintf("%s📍 Расстояние до вашего адреса: ~%d км\n🚚 Стоимость доставки: %d₸ (%d₸ + %d₸ × %d км)",
						productLine, quote.Km, quote.Price, r.baseFare, r.perKmFare, quote.Km),
					Recommended: sess.SelectedProduct,
				}, nil
			}
		}
	}

	// Brand + category mentioned together: show a filtered menu.
	if reply := r.brandCategoryMenu(ctx, text, products); reply != nil {
		return reply, nil
	}

	// Ranked product recognition: exact > partial > fuzzy.
	if p, kind, ok := r.matcher.Match(text, products); ok {
		var lead string
		switch kind {
		case MatchExact:
			lead = "🔍 Найдено"
		case MatchPartial:
			lead = "🔍 Похоже, вы имели в виду"
		default:
			lead = "🔍 Возможно, вы имели в виду"
		}
		return &models.AIReply{
			Text:        fmt.Sprintf("%s: %s (%d₸).\nОписание: %s\nХотите оформить заказ?", lead, p.Name, p.Price, p.Description),
			Recommended: &p,
		}, nil
	}

	return r.askModel(ctx, sess, message, products)
}

func (r *GeminiResponder) brandCategoryMenu(ctx context.Context, text string, products []models.Product) *models.AIReply {
	brands, categories, err := r.catalog.ListBrandsAndCategories(ctx)
	if err != nil {
		utils.LogWarn(ctx, "не удалось получить бренды и категории", slog.Any("error", err))
		return nil
	}

	brand := firstContained(text, brands)
	category := firstContained(text, categories)
	if brand == "" || category == "" {
		return nil
	}

	var filtered []models.Product
	for _, p := range products {
		if !strings.Contains(strings.ToLower(p.Brand), brand) {
			continue
		}
		if strings.Contains(strings.ToLower(p.Category), category) || strings.Contains(strings.ToLower(p.Name), category) {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) == 0 {
		return nil
	}

	lines := make([]string, 0, len(filtered))
	for i, p := range filtered {
		lines = append(lines, fmt.Sprintf("%d) %s — %s (%d₸)", i+1, p.Name, p.Description, p.Price))
	}
	return &models.AIReply{
		Text: fmt.Sprintf("🔍 Найдено %d товаров от бренда %s в категории \"%s\":\n\n%s\n\nВы можете выбрать номер товара или уточнить, что вам нужно.",
			len(filtered), strings.ToUpper(brand), category, strings.Join(lines, "\n")),
	}
}

func (r *GeminiResponder) askModel(ctx context.Context, sess models.Session, message string, products []models.Product) (*models.AIReply, error) {
	shopInfo, err := r.catalog.GetShopInfo(ctx)
	if err != nil {
		utils.LogWarn(ctx, "не удалось получить описание магазина", slog.Any("error", err))
		shopInfo = "Информация недоступна."
	}

	prompt := r.prompts.BuildSystemPrompt(shopInfo, products, sess.SelectedProduct)
	if len(sess.History) > 0 {
		var b strings.Builder
		b.WriteString("\n\n# ИСТОРИЯ ДИАЛОГА:\n")
		for _, entry := range sess.History {
			b.WriteString(entry.Role + ": " + entry.Content + "\n")
		}
		prompt += b.String()
	}
	prompt += "\n\nСообщение клиента: " + message

	generateConfig := &genai.GenerateContentConfig{
		Temperature:     &r.temp,
		MaxOutputTokens: int32(r.maxTokens),
	}

	resp, err := r.client.Models.GenerateContent(ctx, r.model, genai.Text(prompt), generateConfig)
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in Gemini response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("no content in Gemini response")
	}

	responseText := ""
	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			responseText += part.Text
		}
	}
	responseText = strings.TrimSpace(responseText)
	if responseText == "" {
		return nil, fmt.Errorf("empty response text from Gemini")
	}

	// The model may name a catalog product without selecting it; surface
	// that as a recommendation.
	lower := strings.ToLower(responseText)
	for _, p := range products {
		if strings.Contains(lower, strings.ToLower(p.Name)) {
			p := p
			return &models.AIReply{
				Text:        fmt.Sprintf("🔍 Найдено: %s (%d₸).\nОписание: %s\nХотите оформить заказ?", p.Name, p.Price, p.Description),
				Recommended: &p,
			}, nil
		}
	}

	return &models.AIReply{Text: responseText}, nil
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func firstContained(text string, values []string) string {
	for _, v := range values {
		if v != "" && strings.Contains(text, v) {
			return v
		}
	}
	return ""
}

func looksLikeAddress(text string) bool {
	return houseDigitsRe.MatchString(text) || addressWordsRe.MatchString(text)
}
