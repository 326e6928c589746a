// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketCallRecordings() string
	IsMinIOEnabled() bool
}

// SchedulerConfig provides settings for the asynq task queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// WebhookConfig provides settings for dialer webhook ingress.
type WebhookConfig interface {
	GetAppBaseURL() string
	GetWebhookRatePerMinute() int
}

// AcquisitionConfig provides limits for downloading and storing provider recordings.
type AcquisitionConfig interface {
	GetRecordingMaxBytes() int64
	GetDownloadTimeout() time.Duration
	GetUploadTimeout() time.Duration
	GetAcquisitionMaxAttempts() int
	GetAcquisitionBackoff() time.Duration
	GetRecordingURLTTL() time.Duration
	GetRetentionPeriod() time.Duration
}

// ScoringConfig provides settings for the qualification scoring model.
type ScoringConfig interface {
	GetScoringAPIKey() string
	GetScoringBaseURL() string
	GetScoringModel() string
	GetScoringTimeout() time.Duration
	GetScoringMaxAttempts() int
	IsScoringEnabled() bool
}

// TranscriptionConfig provides settings for post-call transcription.
type TranscriptionConfig interface {
	GetGeminiAPIKey() string
	GetTranscriptionModel() string
	GetTranscriptionLanguage() string
	IsTranscriptionEnabled() bool
}

// RetentionConfig provides settings for the recording retention job.
type RetentionConfig interface {
	GetCronSecret() string
	GetRetentionBatchSize() int
	GetRetentionInterval() time.Duration
	GetRetentionWindow() time.Duration
}

// SMTPConfig provides settings for operator alert emails.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetOperatorAlertEmail() string
	IsAlertingEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                      string
	HTTPAddr                 string
	DatabaseURL              string
	JWTAccessSecret          string
	CORSAllowAll             bool
	CORSOrigins              []string
	CORSAllowCreds           bool
	AppBaseURL               string
	WebhookRatePerMinute     int
	MinIOEndpoint            string
	MinIOAccessKey           string
	MinIOSecretKey           string
	MinIOUseSSL              bool
	MinioBucketCallRecording string
	RedisURL                 string
	RedisTLSInsecure         bool
	AsynqQueueName           string
	AsynqConcurrency         int
	RecordingMaxBytes        int64
	DownloadTimeout          time.Duration
	UploadTimeout            time.Duration
	AcquisitionMaxAttempts   int
	AcquisitionBackoff       time.Duration
	RecordingURLTTL          time.Duration
	RetentionPeriod          time.Duration
	ScoringAPIKey            string
	ScoringBaseURL           string
	ScoringModel             string
	ScoringTimeout           time.Duration
	ScoringMaxAttempts       int
	GeminiAPIKey             string
	TranscriptionModel       string
	TranscriptionLanguage    string
	CronSecret               string
	RetentionBatchSize       int
	RetentionInterval        time.Duration
	RetentionWindow          time.Duration
	SMTPHost                 string
	SMTPPort                 int
	SMTPUsername             string
	SMTPPassword             string
	EmailFromName            string
	EmailFromAddress         string
	OperatorAlertEmail       string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string             { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string            { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string            { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool                 { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketCallRecordings() string { return c.MinioBucketCallRecording }
func (c *Config) IsMinIOEnabled() bool                 { return c.MinIOEndpoint != "" }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// WebhookConfig implementation
func (c *Config) GetAppBaseURL() string        { return c.AppBaseURL }
func (c *Config) GetWebhookRatePerMinute() int { return c.WebhookRatePerMinute }

// AcquisitionConfig implementation
func (c *Config) GetRecordingMaxBytes() int64          { return c.RecordingMaxBytes }
func (c *Config) GetDownloadTimeout() time.Duration    { return c.DownloadTimeout }
func (c *Config) GetUploadTimeout() time.Duration      { return c.UploadTimeout }
func (c *Config) GetAcquisitionMaxAttempts() int       { return c.AcquisitionMaxAttempts }
func (c *Config) GetAcquisitionBackoff() time.Duration { return c.AcquisitionBackoff }
func (c *Config) GetRecordingURLTTL() time.Duration    { return c.RecordingURLTTL }
func (c *Config) GetRetentionPeriod() time.Duration    { return c.RetentionPeriod }

// ScoringConfig implementation
func (c *Config) GetScoringAPIKey() string         { return c.ScoringAPIKey }
func (c *Config) GetScoringBaseURL() string        { return c.ScoringBaseURL }
func (c *Config) GetScoringModel() string          { return c.ScoringModel }
func (c *Config) GetScoringTimeout() time.Duration { return c.ScoringTimeout }
func (c *Config) GetScoringMaxAttempts() int       { return c.ScoringMaxAttempts }
func (c *Config) IsScoringEnabled() bool           { return c.ScoringAPIKey != "" }

// TranscriptionConfig implementation
func (c *Config) GetGeminiAPIKey() string          { return c.GeminiAPIKey }
func (c *Config) GetTranscriptionModel() string    { return c.TranscriptionModel }
func (c *Config) GetTranscriptionLanguage() string { return c.TranscriptionLanguage }
func (c *Config) IsTranscriptionEnabled() bool     { return c.GeminiAPIKey != "" }

// RetentionConfig implementation
func (c *Config) GetCronSecret() string               { return c.CronSecret }
func (c *Config) GetRetentionBatchSize() int          { return c.RetentionBatchSize }
func (c *Config) GetRetentionInterval() time.Duration { return c.RetentionInterval }
func (c *Config) GetRetentionWindow() time.Duration   { return c.RetentionWindow }

// SMTPConfig implementation
func (c *Config) GetSMTPHost() string           { return c.SMTPHost }
func (c *Config) GetSMTPPort() int              { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string       { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string       { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string      { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string   { return c.EmailFromAddress }
func (c *Config) GetOperatorAlertEmail() string { return c.OperatorAlertEmail }
func (c *Config) IsAlertingEnabled() bool {
	return c.SMTPHost != "" && c.OperatorAlertEmail != "" && c.EmailFromAddress != ""
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                      getEnv("APP_ENV", "development"),
		HTTPAddr:                 getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		JWTAccessSecret:          getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:             corsAllowAll,
		CORSOrigins:              corsOrigins,
		CORSAllowCreds:           strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		AppBaseURL:               getEnv("APP_BASE_URL", "https://app.valdi.io"),
		WebhookRatePerMinute:     mustInt(getEnv("WEBHOOK_RATE_PER_MINUTE", "120")),
		MinIOEndpoint:            getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:           getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:           getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:              strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketCallRecording: getEnv("MINIO_BUCKET_CALL_RECORDINGS", "call-recordings"),
		RedisURL:                 getEnv("REDIS_URL", ""),
		RedisTLSInsecure:         strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:           getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:         mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		RecordingMaxBytes:        mustInt64(getEnv("RECORDING_MAX_BYTES", "104857600")),
		DownloadTimeout:          mustDuration(getEnv("DOWNLOAD_TIMEOUT", "60s")),
		UploadTimeout:            mustDuration(getEnv("UPLOAD_TIMEOUT", "60s")),
		AcquisitionMaxAttempts:   mustInt(getEnv("ACQUISITION_MAX_ATTEMPTS", "3")),
		AcquisitionBackoff:       mustDuration(getEnv("ACQUISITION_BACKOFF", "500ms")),
		RecordingURLTTL:          mustDuration(getEnv("RECORDING_URL_TTL", "1h")),
		RetentionPeriod:          mustDuration(getEnv("RECORDING_RETENTION", "720h")),
		ScoringAPIKey:            getEnv("SCORING_API_KEY", ""),
		ScoringBaseURL:           getEnv("SCORING_BASE_URL", "https://api.openai.com/v1"),
		ScoringModel:             getEnv("SCORING_MODEL", "gpt-4-turbo-preview"),
		ScoringTimeout:           mustDuration(getEnv("SCORING_TIMEOUT", "45s")),
		ScoringMaxAttempts:       mustInt(getEnv("SCORING_MAX_ATTEMPTS", "3")),
		GeminiAPIKey:             getEnv("GEMINI_API_KEY", ""),
		TranscriptionModel:       getEnv("TRANSCRIPTION_MODEL", "gemini-2.0-flash"),
		TranscriptionLanguage:    getEnv("TRANSCRIPTION_LANGUAGE", "sv"),
		CronSecret:               getEnv("CRON_SECRET", ""),
		RetentionBatchSize:       mustInt(getEnv("RETENTION_BATCH_SIZE", "100")),
		RetentionInterval:        mustDuration(getEnv("RETENTION_INTERVAL", "24h")),
		RetentionWindow:          mustDuration(getEnv("RETENTION_WINDOW", "24h")),
		SMTPHost:                 getEnv("SMTP_HOST", ""),
		SMTPPort:                 mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:             getEnv("SMTP_USERNAME", ""),
		SMTPPassword:             getEnv("SMTP_PASSWORD", ""),
		EmailFromName:            getEnv("EMAIL_FROM_NAME", "Valdi"),
		EmailFromAddress:         getEnv("EMAIL_FROM_ADDRESS", ""),
		OperatorAlertEmail:       getEnv("OPERATOR_ALERT_EMAIL", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.RetentionPeriod <= 0 {
		return nil, fmt.Errorf("RECORDING_RETENTION must be a positive duration")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
