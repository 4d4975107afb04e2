package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Sabyr2003/whatsapp-bot-store/internal/models"
	"github.com/Sabyr2003/whatsapp-bot-store/internal/utils"
)

const productColumns = "id,name,brand,price,description,category"

// Placeholder used when a product row has no description.
const missingDescription = "Описание отсутствует."

// Catalog is the product/order store consumed by the message flow.
type Catalog interface {
	GetShopInfo(ctx context.Context) (string, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	ListBrandsAndCategories(ctx context.Context) ([]string, []string, error)
	ListByKeyword(ctx context.Context, keywords []string) ([]models.Product, error)
	SaveOrder(ctx context.Context, userID string, product models.Product, address string, deliveryPrice int) error
}

// SupabaseCatalog talks to the hosted Postgres over the PostgREST API.
type SupabaseCatalog struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewSupabaseCatalog(baseURL, apiKey string) *SupabaseCatalog {
	return &SupabaseCatalog{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 25 * time.Second},
	}
}

func (c *SupabaseCatalog) do(ctx context.Context, method, path string, query map[string]string, body any) ([]byte, int, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, 0, err
	}
	if len(query) > 0 {
		q := u.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	var b io.Reader
	if body != nil {
		j, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		b = bytes.NewReader(j)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), b)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(resp.Body)
	return out, resp.StatusCode, nil
}

// GetShopInfo returns the free-text shop description used in the
// responder system prompt.
func (c *SupabaseCatalog) GetShopInfo(ctx context.Context) (string, error) {
	out, code, err := c.do(ctx, http.MethodGet, "/rest/v1/shop_info", map[string]string{
		"select": "info",
		"id":     "eq.1",
	}, nil)
	if err != nil {
		return "", err
	}
	if code >= 300 {
		return "", fmt.Errorf("supabase shop_info (%d): %s", code, string(out))
	}

	var rows []struct {
		Info string `json:"info"`
	}
	if err := json.Unmarshal(out, &rows); err != nil {
		return "", fmt.Errorf("supabase shop_info decode: %w", err)
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("supabase shop_info: empty result")
	}
	return rows[0].Info, nil
}

func (c *SupabaseCatalog) ListProducts(ctx context.Context) ([]models.Product, error) {
	out, code, err := c.do(ctx, http.MethodGet, "/rest/v1/products", map[string]string{
		"select": productColumns,
	}, nil)
	if err != nil {
		return nil, err
	}
	if code >= 300 {
		return nil, fmt.Errorf("supabase products (%d): %s", code, string(out))
	}

	var products []models.Product
	if err := json.Unmarshal(out, &products); err != nil {
		return nil, fmt.Errorf("supabase products decode: %w", err)
	}
	for i := range products {
		if products[i].Description == "" {
			products[i].Description = missingDescription
		}
	}
	return products, nil
}

// ListBrandsAndCategories returns the distinct lowercased brands and
// categories present in the catalog.
func (c *SupabaseCatalog) ListBrandsAndCategories(ctx context.Context) ([]string, []string, error) {
	out, code, err := c.do(ctx, http.MethodGet, "/rest/v1/products", map[string]string{
		"select": "brand,category",
	}, nil)
	if err != nil {
		return nil, nil, err
	}
	if code >= 300 {
		return nil, nil, fmt.Errorf("supabase brands (%d): %s", code, string(out))
	}

	var rows []struct {
		Brand    string `json:"brand"`
		Category string `json:"category"`
	}
	if err := json.Unmarshal(out, &rows); err != nil {
		return nil, nil, fmt.Errorf("supabase brands decode: %w", err)
	}

	brandSet := make(map[string]bool)
	categorySet := make(map[string]bool)
	var brands, categories []string
	for _, row := range rows {
		if b := strings.ToLower(row.Brand); b != "" && !brandSet[b] {
			brandSet[b] = true
			brands = append(brands, b)
		}
		if cat := strings.ToLower(row.Category); cat != "" && !categorySet[cat] {
			categorySet[cat] = true
			categories = append(categories, cat)
		}
	}
	return brands, categories, nil
}

// ListByKeyword filters products whose name or description contains
// any of the keywords, case-insensitively.
func (c *SupabaseCatalog) ListByKeyword(ctx context.Context, keywords []string) ([]models.Product, error) {
	products, err := c.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	var matched []models.Product
	for _, p := range products {
		haystack := strings.ToLower(p.Name + p.Description)
		for _, kw := range keywords {
			if strings.Contains(haystack, strings.ToLower(kw)) {
				matched = append(matched, p)
				break
			}
		}
	}
	return matched, nil
}

// SaveOrder inserts one row into the orders table.
func (c *SupabaseCatalog) SaveOrder(ctx context.Context, userID string, product models.Product, address string, deliveryPrice int) error {
	order := models.Order{
		ID:            uuid.New(),
		UserID:        userID,
		ProductID:     product.ID,
		ProductName:   product.Name,
		ProductPrice:  product.Price,
		Address:       address,
		DeliveryPrice: deliveryPrice,
		CreatedAt:     time.Now().UTC(),
	}

	out, code, err := c.do(ctx, http.MethodPost, "/rest/v1/orders", nil, []models.Order{order})
	if err != nil {
		return err
	}
	if code >= 300 {
		return fmt.Errorf("supabase insert orders (%d): %s", code, string(out))
	}

	utils.LogInfo(ctx, "order saved",
		slog.String("order_id", order.ID.String()),
		slog.String("user_id", userID),
		slog.String("product", product.Name),
		slog.Int("delivery_price", deliveryPrice),
	)
	return nil
}
