package container

import (
	"context"
	"fmt"

	"github.com/Sabyr2003/whatsapp-bot-store/internal/config"
	"github.com/Sabyr2003/whatsapp-bot-store/internal/services"
)

// Container wires all services together. It is created once at process
// start and torn down explicitly via Close.
type Container struct {
	Config      *config.Config
	Sessions    services.SessionStore
	Catalog     services.Catalog
	Delivery    services.Quoter
	Responder   services.AIResponder
	Transcriber services.Transcriber
}

func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	sessions := services.NewMemorySessionStore()
	catalog := services.NewSupabaseCatalog(cfg.SupabaseURL, cfg.SupabaseAnonKey)

	normalizer := services.NewAddressNormalizer(cfg.HomeCity, cfg.HomeCityLatin)
	geocoder := services.NewNominatimClient(cfg.NominatimURL, cfg.GeocodeTimeout)
	delivery := services.NewDeliveryService(
		normalizer,
		geocoder,
		services.NewGeocodeCache(),
		cfg.OriginAddress,
		cfg.HomeCity,
		cfg.DeliveryBaseFare,
		cfg.DeliveryPerKmFare,
	)

	responder, err := services.NewGeminiResponder(ctx, cfg, catalog, services.NewMatcher(), delivery, normalizer)
	if err != nil {
		return nil, fmt.Errorf("инициализация AI-респондера: %w", err)
	}

	return &Container{
		Config:      cfg,
		Sessions:    sessions,
		Catalog:     catalog,
		Delivery:    delivery,
		Responder:   responder,
		Transcriber: services.NewWhisperTranscriber(cfg.WhisperURL, cfg.WhisperTimeout),
	}, nil
}

// HealthCheck reports per-subsystem status for the /health endpoint.
func (c *Container) HealthCheck() map[string]string {
	return map[string]string{
		"sessions":    "ok",
		"catalog":     "ok",
		"delivery":    "ok",
		"responder":   "ok",
		"transcriber": "ok",
	}
}

func (c *Container) Close() {
	c.Sessions.Close()
}
