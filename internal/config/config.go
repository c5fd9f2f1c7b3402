package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Vector index providers.
const (
	ProviderPinecone = "pinecone"
	ProviderPGVector = "pgvector"
	ProviderSQLite   = "sqlite"
)

// Session store backends.
const (
	SessionMemory = "memory"
	SessionRedis  = "redis"
)

type Config struct {
	// server
	Port           int           `koanf:"port" validate:"min=1,max=65535"`
	ServerAddr     string        `koanf:"server_addr"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"gte=0"`

	// OpenAI-compatible endpoint used for both embeddings and chat
	LMBaseURL      string  `koanf:"lm_base_url" validate:"required,url"`
	LMAPIKey       string  `koanf:"lm_api_key"`
	EmbedModel     string  `koanf:"embed_model" validate:"required"`
	ChatModel      string  `koanf:"chat_model" validate:"required"`
	EmbedCacheSize int     `koanf:"embed_cache_size" validate:"gte=0"`
	Temperature    float32 `koanf:"temperature" validate:"gte=0,lte=2"`

	// vector index
	VectorProvider     string `koanf:"vector_provider" validate:"oneof=pinecone pgvector sqlite"`
	EmbedDimension     int    `koanf:"embed_dimension" validate:"gt=0"`
	PineconeAPIKey     string `koanf:"pinecone_api_key" validate:"required_if=VectorProvider pinecone"`
	PineconeIndexName  string `koanf:"pinecone_index_name" validate:"required_if=VectorProvider pinecone"`
	PineconeIndexHost  string `koanf:"pinecone_index_host"`
	PineconeNamespace  string `koanf:"pinecone_namespace"`
	PineconeControlURL string `koanf:"pinecone_control_url" validate:"required,url"`
	PgConn             string `koanf:"pg_conn" validate:"required_if=VectorProvider pgvector"`
	SQLitePath         string `koanf:"sqlite_path" validate:"required_if=VectorProvider sqlite"`

	// query pipeline
	TopK             int    `koanf:"top_k" validate:"gt=0"`
	HistoryTurns     int    `koanf:"history_turns" validate:"gte=0"`
	MaxContextTokens int    `koanf:"max_context_tokens" validate:"gte=0"`
	RewriteFallback  bool   `koanf:"rewrite_fallback"`
	Persona          string `koanf:"persona" validate:"required"`

	// conversation memory
	SessionStore  string        `koanf:"session_store" validate:"oneof=memory redis"`
	SessionTTL    time.Duration `koanf:"session_ttl" validate:"gt=0"`
	MaxSessions   int           `koanf:"max_sessions" validate:"gt=0"`
	RedisAddr     string        `koanf:"redis_addr" validate:"required_if=SessionStore redis"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db" validate:"gte=0"`

	// safety
	CrisisKeywords     []string `koanf:"crisis_keywords"`
	CrisisKeywordsFile string   `koanf:"crisis_keywords_file"`

	// ingestion
	IngestFiles       []string `koanf:"ingest_files"`
	ChunkSize         int      `koanf:"chunk_size" validate:"gt=0"`
	ChunkOverlap      int      `koanf:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
	IngestConcurrency int      `koanf:"ingest_concurrency" validate:"gt=0"`

	// logging
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`
	LogJSON  bool   `koanf:"log_json"`
}

// Default returns the configuration used when nothing is set in the environment.
func Default() *Config {
	return &Config{
		Port:           8080,
		RequestTimeout: 60 * time.Second,

		LMBaseURL:      "https://generativelanguage.googleapis.com/v1beta/openai/",
		EmbedModel:     "text-embedding-004",
		ChatModel:      "gemini-2.0-flash",
		EmbedCacheSize: 512,
		Temperature:    0.2,

		VectorProvider:     ProviderPinecone,
		EmbedDimension:     768,
		PineconeControlURL: "https://api.pinecone.io",
		SQLitePath:         "data/index.db",

		TopK:         10,
		HistoryTurns: 10,
		Persona:      "You are a Kerala Agriculture Expert.",

		SessionStore: SessionMemory,
		SessionTTL:   30 * time.Minute,
		MaxSessions:  10000,

		ChunkSize:         1000,
		ChunkOverlap:      200,
		IngestConcurrency: 5,

		LogLevel: "info",
	}
}

// envKeys maps environment variables onto config keys.
var envKeys = map[string]string{
	"PORT":                 "port",
	"SERVER_ADDR":          "server_addr",
	"REQUEST_TIMEOUT":      "request_timeout",
	"LMSTUDIO_BASE_URL":    "lm_base_url",
	"LLM_BASE_URL":         "lm_base_url",
	"GEMINI_API_KEY":       "lm_api_key",
	"LLM_API_KEY":          "lm_api_key",
	"EMBED_MODEL":          "embed_model",
	"LLM_MODEL":            "chat_model",
	"EMBED_CACHE_SIZE":     "embed_cache_size",
	"LLM_TEMPERATURE":      "temperature",
	"VECTOR_PROVIDER":      "vector_provider",
	"EMBED_DIMENSION":      "embed_dimension",
	"PINECONE_API_KEY":     "pinecone_api_key",
	"PINECONE_INDEX_NAME":  "pinecone_index_name",
	"PINECONE_INDEX_HOST":  "pinecone_index_host",
	"PINECONE_NAMESPACE":   "pinecone_namespace",
	"PINECONE_CONTROL_URL": "pinecone_control_url",
	"PG_CONN":              "pg_conn",
	"SQLITE_PATH":          "sqlite_path",
	"TOP_K":                "top_k",
	"HISTORY_TURNS":        "history_turns",
	"MAX_CONTEXT_TOKENS":   "max_context_tokens",
	"REWRITE_FALLBACK":     "rewrite_fallback",
	"ASSISTANT_PERSONA":    "persona",
	"SESSION_STORE":        "session_store",
	"SESSION_TTL":          "session_ttl",
	"MAX_SESSIONS":         "max_sessions",
	"REDIS_ADDR":           "redis_addr",
	"REDIS_PASSWORD":       "redis_password",
	"REDIS_DB":             "redis_db",
	"CRISIS_KEYWORDS":      "crisis_keywords",
	"CRISIS_KEYWORDS_FILE": "crisis_keywords_file",
	"INGEST_FILES":         "ingest_files",
	"CHUNK_SIZE":           "chunk_size",
	"CHUNK_OVERLAP":        "chunk_overlap",
	"INGEST_CONCURRENCY":   "ingest_concurrency",
	"LOG_LEVEL":            "log_level",
	"LOG_JSON":             "log_json",
}

var listKeys = map[string]bool{
	"crisis_keywords": true,
	"ingest_files":    true,
}

// Load reads .env (if present), then defaults overlaid with the environment,
// and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}
	err := k.Load(env.Provider(".", env.Opt{
		TransformFunc: func(key, value string) (string, any) {
			path, ok := envKeys[key]
			if !ok || strings.TrimSpace(value) == "" {
				return "", nil
			}
			if listKeys[path] {
				return path, splitList(value)
			}
			return path, value
		},
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if cfg.LMAPIKey == "" {
		cfg.LMAPIKey = "not-needed"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	if c.ServerAddr != "" {
		return c.ServerAddr
	}
	return ":" + strconv.Itoa(c.Port)
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
