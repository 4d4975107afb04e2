package models

import (
	"time"

	"github.com/google/uuid"
)

// ═══════════════════════════════════════════════════════════
// CATALOG MODELS
// ═══════════════════════════════════════════════════════════

// Product is read-only reference data from the catalog store.
// Price is in whole tenge.
type Product struct {
	ID          int    `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Brand       string `json:"brand" db:"brand"`
	Price       int    `json:"price" db:"price"`
	Description string `json:"description" db:"description"`
	Category    string `json:"category" db:"category"`
}

// Order is a finalized purchase persisted to the orders table.
type Order struct {
	ID            uuid.UUID `json:"id" db:"id"`
	UserID        string    `json:"user_id" db:"user_id"`
	ProductID     int       `json:"product_id" db:"product_id"`
	ProductName   string    `json:"product_name" db:"product_name"`
	ProductPrice  int       `json:"product_price" db:"product_price"`
	Address       string    `json:"address" db:"address"`
	DeliveryPrice int       `json:"delivery_price" db:"delivery_price"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
