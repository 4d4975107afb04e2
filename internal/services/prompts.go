package services

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/Sabyr2003/whatsapp-bot-store/internal/models"
)

//go:embed prompts/system_prompt.txt
var systemPromptTemplate string

// PromptManager renders the responder system prompt from the embedded
// template and live catalog data.
type PromptManager struct {
	template string
}

func NewPromptManager() *PromptManager {
	return &PromptManager{template: systemPromptTemplate}
}

// BuildSystemPrompt fills in shop info, the product catalog and the
// user's current selection.
func (pm *PromptManager) BuildSystemPrompt(shopInfo string, products []models.Product, selected *models.Product) string {
	lines := make([]string, 0, len(products))
	for _, p := range products {
		lines = append(lines, fmt.Sprintf("🔹 %s — %s (Бренд: %s, Цена: %d₸)", p.Name, p.Description, p.Brand, p.Price))
	}

	historyContext := "Пользователь ещё не выбрал товар."
	if selected != nil {
		historyContext = fmt.Sprintf("Пользователь ранее выбрал товар: %s (%d₸)", selected.Name, selected.Price)
	}

	prompt := pm.template
	prompt = strings.ReplaceAll(prompt, "{history_context}", historyContext)
	prompt = strings.ReplaceAll(prompt, "{shop_info}", shopInfo)
	prompt = strings.ReplaceAll(prompt, "{product_list}", strings.Join(lines, "\n"))
	return prompt
}
