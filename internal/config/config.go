package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings, loaded from the environment.
type Config struct {
	Port     string
	LogLevel string

	// Supabase (product catalog + orders)
	SupabaseURL     string
	SupabaseAnonKey string

	// Gemini fallback responder
	GeminiAPIKey          string
	GeminiModel           string
	GeminiTemperature     float32
	GeminiMaxOutputTokens int

	// Whisper transcription service
	WhisperURL     string
	WhisperTimeout time.Duration

	// Geocoding
	NominatimURL   string
	GeocodeTimeout time.Duration
	OriginAddress  string
	HomeCity       string
	HomeCityLatin  string

	// Delivery fare model (tenge)
	DeliveryBaseFare  int
	DeliveryPerKmFare int
}

// Load reads configuration from the environment. A .env file is
// loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		SupabaseURL:     os.Getenv("SUPABASE_URL"),
		SupabaseAnonKey: os.Getenv("SUPABASE_ANON_KEY"),

		GeminiAPIKey:          os.Getenv("GEMINI_API_KEY"),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiTemperature:     0.4,
		GeminiMaxOutputTokens: getEnvInt("GEMINI_MAX_OUTPUT_TOKENS", 512),

		WhisperURL:     getEnv("WHISPER_URL", "http://127.0.0.1:5005/transcribe"),
		WhisperTimeout: 30 * time.Second,

		NominatimURL:   getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org/search"),
		GeocodeTimeout: 10 * time.Second,
		OriginAddress:  getEnv("ORIGIN_ADDRESS", "Алматы, проспект Райымбека, 206к"),
		HomeCity:       getEnv("HOME_CITY", "алматы"),
		HomeCityLatin:  getEnv("HOME_CITY_LATIN", "almaty"),

		DeliveryBaseFare:  getEnvInt("DELIVERY_BASE_FARE", 500),
		DeliveryPerKmFare: getEnvInt("DELIVERY_PER_KM_FARE", 200),
	}

	if cfg.SupabaseURL == "" {
		return nil, fmt.Errorf("SUPABASE_URL не задан")
	}
	if cfg.SupabaseAnonKey == "" {
		return nil, fmt.Errorf("SUPABASE_ANON_KEY не задан")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY не задан")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
