// Package config loads application configuration from the environment,
// merging a local .env file when one is present.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Env               string
	Port              string
	CORSAllowOrigin   []string
	RequestsPerMinute int

	DatabaseURL string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	QueueKind   string
	SQSQueueURL string
	NATSURL     string

	LLMProvider     string
	LLMModel        string
	EmbeddingModel  string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string

	SessionTTL time.Duration
	WorkerMax  int
}

// Load reads configuration from environment variables with sensible defaults.
// Real environment variables take precedence over .env entries.
func Load() Config {
	return load(viperWithEnvFiles(".env", "cmd/.env"))
}

func load(v *viper.Viper) Config {
	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("CORS_ALLOW_ORIGINS", "http://localhost:5173")
	v.SetDefault("REQUESTS_PER_MINUTE", 120)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("OBJECT_STORE", "local")
	v.SetDefault("LOCAL_STORE_DIR", "./data")
	v.SetDefault("AWS_REGION", "")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_PREFIX", "")
	v.SetDefault("SSE_KMS_KEY_ID", "")
	v.SetDefault("QUEUE", "none")
	v.SetDefault("SQS_QUEUE_URL", "")
	v.SetDefault("NATS_URL", "")
	v.SetDefault("LLM_PROVIDER", "placeholder")
	v.SetDefault("LLM_MODEL", "")
	v.SetDefault("EMBEDDING_MODEL", "")
	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("ANTHROPIC_API_KEY", "")
	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("SESSION_TTL", "2h")
	v.SetDefault("WORKER_MAX", 4)

	return Config{
		Env:               normalizeEnv(v.GetString("ENV")),
		Port:              v.GetString("PORT"),
		CORSAllowOrigin:   splitAndTrim(v.GetString("CORS_ALLOW_ORIGINS")),
		RequestsPerMinute: v.GetInt("REQUESTS_PER_MINUTE"),
		DatabaseURL:       v.GetString("DATABASE_URL"),
		ObjectStoreType:   normalizeStoreType(v.GetString("OBJECT_STORE")),
		LocalStoreDir:     v.GetString("LOCAL_STORE_DIR"),
		AWSRegion:         v.GetString("AWS_REGION"),
		S3Bucket:          v.GetString("S3_BUCKET"),
		S3Prefix:          v.GetString("S3_PREFIX"),
		SSEKMSKeyID:       v.GetString("SSE_KMS_KEY_ID"),
		QueueKind:         normalizeQueueKind(v.GetString("QUEUE")),
		SQSQueueURL:       v.GetString("SQS_QUEUE_URL"),
		NATSURL:           v.GetString("NATS_URL"),
		LLMProvider:       strings.ToLower(strings.TrimSpace(v.GetString("LLM_PROVIDER"))),
		LLMModel:          v.GetString("LLM_MODEL"),
		EmbeddingModel:    v.GetString("EMBEDDING_MODEL"),
		OpenAIAPIKey:      v.GetString("OPENAI_API_KEY"),
		AnthropicAPIKey:   v.GetString("ANTHROPIC_API_KEY"),
		GeminiAPIKey:      v.GetString("GEMINI_API_KEY"),
		SessionTTL:        positiveDuration(v.GetDuration("SESSION_TTL"), 2*time.Hour),
		WorkerMax:         positiveInt(v.GetInt("WORKER_MAX"), 4),
	}
}

// viperWithEnvFiles builds a viper instance that reads the real environment
// and merges the first-found KEY=VALUE files for dev convenience.
func viperWithEnvFiles(paths ...string) *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	for _, path := range paths {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		// Missing files are fine; only explicit parse errors would matter
		// and a broken .env should not take the process down.
		_ = v.MergeInConfig()
	}
	return v
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeQueueKind(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sqs":
		return "sqs"
	case "nats":
		return "nats"
	default:
		return "none"
	}
}

func positiveDuration(val, def time.Duration) time.Duration {
	if val <= 0 {
		return def
	}
	return val
}

func positiveInt(val, def int) int {
	if val <= 0 {
		return def
	}
	return val
}
