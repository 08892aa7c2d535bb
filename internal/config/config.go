package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all service configuration.
type Config struct {
	// Server settings
	HTTPAddress string
	ServiceName string

	// PublicURL is the externally reachable base URL, baked into the embed
	// script so widgets know where to call back.
	PublicURL string

	// Token signing
	TokenSigningSecret string
	TokenTTLMinutes    int

	// Primary persistence
	MongoURI      string
	MongoDatabase string

	// Activity ledger backend: mongo or redis
	ActivityBackend string
	RedisAddr       string
	RedisPassword   string
	ActivityTTLDays int

	// Vector store backend: memory or postgres
	VectorBackend string
	PostgresURL   string

	// Providers
	EmbeddingProvider string
	AnswerProvider    string
	OpenAIAPIKey      string
	GeminiAPIKey      string
	AnthropicAPIKey   string
	EmbeddingModel    string
	AnswerModel       string

	// Ingestion pipeline
	ChunkSize                int
	ChunkOverlap             int
	IngestConcurrencyPerSite int
	FetchTimeoutSeconds      int
	MaxFetchBytes            int64
	EmbedBatchSize           int
	EmbedRatePerSecond       float64

	// Retrieval
	MinSimilarity float64

	// Gap analyzer
	GapWindowDays    int
	GapMinAttempts   int
	GapOpenRate      int
	GapResolveRate   int
	GapReopenRate    int
	GapRecomputeCron string

	// Blob storage
	BlobDir   string
	BlobWatch bool
}

// LoadConfig loads configuration from .env, config files and environment
// variables, in increasing order of precedence.
func LoadConfig() (*Config, error) {
	// A missing .env is fine; explicit environment always wins.
	_ = godotenv.Load()

	v := viper.New()

	setDefaults(v)

	// Configure environment variables - do this BEFORE reading config
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envMappings := map[string]string{
		"HTTPAddress":              "HTTP_ADDRESS",
		"PublicURL":                "PUBLIC_URL",
		"TokenSigningSecret":       "TOKEN_SIGNING_SECRET",
		"TokenTTLMinutes":          "TOKEN_TTL_MINUTES",
		"MongoURI":                 "MONGO_URI",
		"MongoDatabase":            "MONGO_DATABASE",
		"ActivityBackend":          "ACTIVITY_BACKEND",
		"RedisAddr":                "REDIS_ADDR",
		"RedisPassword":            "REDIS_PASSWORD",
		"ActivityTTLDays":          "ACTIVITY_TTL_DAYS",
		"VectorBackend":            "VECTOR_BACKEND",
		"PostgresURL":              "POSTGRES_URL",
		"EmbeddingProvider":        "EMBEDDING_PROVIDER",
		"AnswerProvider":           "ANSWER_PROVIDER",
		"OpenAIAPIKey":             "OPENAI_API_KEY",
		"GeminiAPIKey":             "GEMINI_API_KEY",
		"AnthropicAPIKey":          "ANTHROPIC_API_KEY",
		"EmbeddingModel":           "EMBEDDING_MODEL",
		"AnswerModel":              "ANSWER_MODEL",
		"ChunkSize":                "CHUNK_SIZE",
		"ChunkOverlap":             "CHUNK_OVERLAP",
		"IngestConcurrencyPerSite": "INGEST_CONCURRENCY_PER_SITE",
		"FetchTimeoutSeconds":      "FETCH_TIMEOUT_SECONDS",
		"MaxFetchBytes":            "MAX_FETCH_BYTES",
		"EmbedBatchSize":           "EMBED_BATCH_SIZE",
		"EmbedRatePerSecond":       "EMBED_RATE_PER_SECOND",
		"MinSimilarity":            "MIN_SIMILARITY",
		"GapWindowDays":            "GAP_WINDOW_DAYS",
		"GapMinAttempts":           "GAP_MIN_ATTEMPTS",
		"GapOpenRate":              "GAP_OPEN_RATE",
		"GapResolveRate":           "GAP_RESOLVE_RATE",
		"GapReopenRate":            "GAP_REOPEN_RATE",
		"GapRecomputeCron":         "GAP_RECOMPUTE_CRON",
		"BlobDir":                  "BLOB_DIR",
		"BlobWatch":                "BLOB_WATCH",
	}

	for configKey, envVar := range envMappings {
		if err := v.BindEnv(configKey, envVar); err != nil {
			log.Warn().Err(err).Msgf("Failed to bind environment variable %s for %s", envVar, configKey)
		}
	}

	v.SetConfigName("helpdeck")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.helpdeck")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug().Msg("Config file not found, using environment variables and defaults")
	} else {
		log.Info().Msgf("Using config file: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTPAddress", ":8080")
	v.SetDefault("ServiceName", "helpdeck-api")
	v.SetDefault("PublicURL", "http://localhost:8080")

	v.SetDefault("TokenTTLMinutes", 15)

	v.SetDefault("MongoURI", "mongodb://localhost:27017")
	v.SetDefault("MongoDatabase", "helpdeck")

	v.SetDefault("ActivityBackend", "mongo")
	v.SetDefault("RedisAddr", "localhost:6379")
	v.SetDefault("ActivityTTLDays", 30)

	v.SetDefault("VectorBackend", "memory")

	v.SetDefault("EmbeddingProvider", "openai")
	v.SetDefault("AnswerProvider", "openai")
	v.SetDefault("EmbeddingModel", "text-embedding-3-small")
	v.SetDefault("AnswerModel", "gpt-4o-mini")

	v.SetDefault("ChunkSize", 2000)
	v.SetDefault("ChunkOverlap", 200)
	v.SetDefault("IngestConcurrencyPerSite", 2)
	v.SetDefault("FetchTimeoutSeconds", 20)
	v.SetDefault("MaxFetchBytes", 10*1024*1024)
	v.SetDefault("EmbedBatchSize", 64)
	v.SetDefault("EmbedRatePerSecond", 5.0)

	v.SetDefault("MinSimilarity", 0.4)

	v.SetDefault("GapWindowDays", 7)
	v.SetDefault("GapMinAttempts", 3)
	v.SetDefault("GapOpenRate", 20)
	v.SetDefault("GapResolveRate", 10)
	v.SetDefault("GapReopenRate", 30)
	v.SetDefault("GapRecomputeCron", "0 * * * *")

	v.SetDefault("BlobDir", "./data/blobs")
	v.SetDefault("BlobWatch", false)
}

func validateConfig(config *Config) error {
	var missingVars []string

	if config.TokenSigningSecret == "" {
		missingVars = append(missingVars, "TOKEN_SIGNING_SECRET")
	}

	switch config.VectorBackend {
	case "memory":
	case "postgres":
		if config.PostgresURL == "" {
			missingVars = append(missingVars, "POSTGRES_URL")
		}
	default:
		return fmt.Errorf("unsupported VECTOR_BACKEND %q (expected memory or postgres)", config.VectorBackend)
	}

	switch config.ActivityBackend {
	case "mongo":
	case "redis":
		if config.RedisAddr == "" {
			missingVars = append(missingVars, "REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unsupported ACTIVITY_BACKEND %q (expected mongo or redis)", config.ActivityBackend)
	}

	switch config.EmbeddingProvider {
	case "openai":
		if config.OpenAIAPIKey == "" {
			missingVars = append(missingVars, "OPENAI_API_KEY")
		}
	case "gemini":
		if config.GeminiAPIKey == "" {
			missingVars = append(missingVars, "GEMINI_API_KEY")
		}
	default:
		return fmt.Errorf("unsupported EMBEDDING_PROVIDER %q (expected openai or gemini)", config.EmbeddingProvider)
	}

	switch config.AnswerProvider {
	case "openai":
		if config.OpenAIAPIKey == "" {
			missingVars = append(missingVars, "OPENAI_API_KEY")
		}
	case "gemini":
		if config.GeminiAPIKey == "" {
			missingVars = append(missingVars, "GEMINI_API_KEY")
		}
	case "anthropic":
		if config.AnthropicAPIKey == "" {
			missingVars = append(missingVars, "ANTHROPIC_API_KEY")
		}
	default:
		return fmt.Errorf("unsupported ANSWER_PROVIDER %q (expected openai, gemini or anthropic)", config.AnswerProvider)
	}

	if config.ChunkOverlap >= config.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", config.ChunkOverlap, config.ChunkSize)
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missingVars, ", "))
	}

	return nil
}
