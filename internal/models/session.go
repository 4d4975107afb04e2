package models

// ═══════════════════════════════════════════════════════════
// CONVERSATION SESSION MODELS
// ═══════════════════════════════════════════════════════════

// Stage is the discrete step of a per-user multi-turn order flow.
type Stage string

const (
	StageIdle                  Stage = ""
	StageAwaitingConfirmation  Stage = "awaiting_order_confirmation"
	StageAwaitingAddress       Stage = "awaiting_address"
	StageAwaitingPaymentMethod Stage = "awaiting_payment_method"
	StageAwaitingCreditInfo    Stage = "awaiting_credit_info"
)

// MaxHistoryEntries caps the per-user message history; oldest
// entries are evicted first.
const MaxHistoryEntries = 15

type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is the per-user conversation state. It lives in process
// memory only and is removed entirely on reset or order completion.
type Session struct {
	Stage              Stage          `json:"stage"`
	SelectedProduct    *Product       `json:"selected_product,omitempty"`
	RecommendedProduct *Product       `json:"recommended_product,omitempty"`
	ProductOptions     []Product      `json:"product_options,omitempty"`
	History            []HistoryEntry `json:"history,omitempty"`
}

// SessionUpdate is a partial, merge-style update. Nil fields keep
// the current value; non-nil fields replace it wholesale.
type SessionUpdate struct {
	Stage              *Stage
	SelectedProduct    *Product
	RecommendedProduct *Product
	ProductOptions     []Product
}
