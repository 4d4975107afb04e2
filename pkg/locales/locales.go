package locales

import (
	_ "embed"
	"encoding/json"
	"log"
)

//go:embed locales.json
var localesJSON []byte

// Locales содержит все текстовые строки из locales.json
type Locales struct {
	SitePayment        PhraseReply     `json:"site_payment"`
	Reset              PhraseReply     `json:"reset"`
	Intents            []Intent        `json:"intents"`
	OrderFlow          OrderFlow       `json:"order_flow"`
	PaymentMethods     []PaymentMethod `json:"payment_methods"`
	PaymentReprompt    string          `json:"payment_reprompt"`
	CreditInfoReceived string          `json:"credit_info_received"`
	CategoryMenu       CategoryMenu    `json:"category_menu"`
	Voice              Voice           `json:"voice"`
	FallbackError      string          `json:"fallback_error"`
}

type PhraseReply struct {
	Phrases []string `json:"phrases"`
	Reply   string   `json:"reply"`
}

// Intent is one fixed-phrase keyword group. Groups are evaluated in
// declaration order, first matching phrase in first matching group wins.
type Intent struct {
	Name    string   `json:"name"`
	Phrases []string `json:"phrases"`
	Reply   string   `json:"reply"`
}

type OrderFlow struct {
	RecommendPhrases  []string `json:"recommend_phrases"`
	ConfirmPhrases    []string `json:"confirm_phrases"`
	Selected          string   `json:"selected"`
	InvalidOption     string   `json:"invalid_option"`
	RecommendAccepted string   `json:"recommend_accepted"`
	ConfirmAccepted   string   `json:"confirm_accepted"`
	ClarifyProduct    string   `json:"clarify_product"`
	Receipt           string   `json:"receipt"`
	SaveFailed        string   `json:"save_failed"`
	QuoteFailed       string   `json:"quote_failed"`
}

type PaymentMethod struct {
	Name     string   `json:"name"`
	Phrases  []string `json:"phrases"`
	Reply    string   `json:"reply"`
	Terminal bool     `json:"terminal"`
}

type CategoryMenu struct {
	Keywords []string `json:"keywords"`
	Header   string   `json:"header"`
	Item     string   `json:"item"`
	Footer   string   `json:"footer"`
	Empty    string   `json:"empty"`
}

type Voice struct {
	Prefix string `json:"prefix"`
	Error  string `json:"error"`
}

var L *Locales

func init() {
	L = &Locales{}
	if err := json.Unmarshal(localesJSON, L); err != nil {
		log.Fatalf("Не удалось распарсить locales.json: %v", err)
	}
}

// Get возвращает указатель на локали
func Get() *Locales {
	return L
}
