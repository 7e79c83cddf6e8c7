package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is read when no explicit path or CONFIG_PATH is given.
const ConfigPath = "config.yaml"

const (
	StorageLocal = "local"
	StorageMinio = "minio"

	defaultMaxUploadBytes = 10 << 20
	minJWTSecretBytes     = 32
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	DatabaseURL   string `yaml:"databaseURL"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	JWTSecret   string `yaml:"jwtSecret"`
	TokenTTL    string `yaml:"tokenTTL"`
	JWTIssuer   string `yaml:"jwtIssuer"`
	JWTAudience string `yaml:"jwtAudience"`

	CORSAllowedOrigins []string `yaml:"corsAllowedOrigins"`
	TrustedProxies     []string `yaml:"trustedProxies"`

	LoginRateLimitPerMinute    int `yaml:"loginRateLimitPerMinute"`
	RegisterRateLimitPerMinute int `yaml:"registerRateLimitPerMinute"`

	StorageDriver  string `yaml:"storageDriver"`
	StorageDir     string `yaml:"storageDir"`
	MaxUploadBytes int64  `yaml:"maxUploadBytes"`
	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	AIProvider       string `yaml:"aiProvider"`
	AIModel          string `yaml:"aiModel"`
	AIEmbeddingModel string `yaml:"aiEmbeddingModel"`
	AIAPIKey         string `yaml:"aiApiKey"`
	AIBaseURL        string `yaml:"aiBaseURL"`
	AITimeout        string `yaml:"aiTimeout"`

	AMQPURL      string `yaml:"amqpURL"`
	AMQPExchange string `yaml:"amqpExchange"`

	SMTPHost     string `yaml:"smtpHost"`
	SMTPPort     int    `yaml:"smtpPort"`
	SMTPUsername string `yaml:"smtpUsername"`
	SMTPPassword string `yaml:"smtpPassword"`
	SMTPFrom     string `yaml:"smtpFrom"`

	PublishTimeout string `yaml:"publishTimeout"`

	BootstrapManagerEmail    string `yaml:"bootstrapManagerEmail"`
	BootstrapManagerPassword string `yaml:"bootstrapManagerPassword"`

	AllowAnyStatusTransition bool `yaml:"allowAnyStatusTransition"`
	RevealAccountExistence   bool `yaml:"revealAccountExistence"`
}

// Load reads config from path (defaults to CONFIG_PATH, then config.yaml),
// applies environment overrides and defaults, and validates the result.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	overrides := []struct {
		env string
		dst *string
	}{
		{"PORT", &cfg.Port},
		{"LOG_LEVEL", &cfg.LogLevel},
		{"DATABASE_URL", &cfg.DatabaseURL},
		{"REDIS_ADDR", &cfg.RedisAddr},
		{"REDIS_PASSWORD", &cfg.RedisPassword},
		{"JWT_SECRET", &cfg.JWTSecret},
		{"TOKEN_TTL", &cfg.TokenTTL},
		{"JWT_ISSUER", &cfg.JWTIssuer},
		{"JWT_AUDIENCE", &cfg.JWTAudience},
		{"STORAGE_DRIVER", &cfg.StorageDriver},
		{"STORAGE_DIR", &cfg.StorageDir},
		{"MINIO_ENDPOINT", &cfg.MinioEndpoint},
		{"MINIO_ACCESS_KEY", &cfg.MinioAccessKey},
		{"MINIO_SECRET_KEY", &cfg.MinioSecretKey},
		{"MINIO_BUCKET", &cfg.MinioBucket},
		{"AI_PROVIDER", &cfg.AIProvider},
		{"AI_MODEL", &cfg.AIModel},
		{"AI_EMBEDDING_MODEL", &cfg.AIEmbeddingModel},
		{"AI_API_KEY", &cfg.AIAPIKey},
		{"AI_BASE_URL", &cfg.AIBaseURL},
		{"AI_TIMEOUT", &cfg.AITimeout},
		{"AMQP_URL", &cfg.AMQPURL},
		{"AMQP_EXCHANGE", &cfg.AMQPExchange},
		{"SMTP_HOST", &cfg.SMTPHost},
		{"SMTP_USERNAME", &cfg.SMTPUsername},
		{"SMTP_PASSWORD", &cfg.SMTPPassword},
		{"SMTP_FROM", &cfg.SMTPFrom},
		{"PUBLISH_TIMEOUT", &cfg.PublishTimeout},
		{"BOOTSTRAP_MANAGER_EMAIL", &cfg.BootstrapManagerEmail},
		{"BOOTSTRAP_MANAGER_PASSWORD", &cfg.BootstrapManagerPassword},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
	ints := []struct {
		env string
		dst *int
	}{
		{"LOGIN_RATE_LIMIT_PER_MINUTE", &cfg.LoginRateLimitPerMinute},
		{"REGISTER_RATE_LIMIT_PER_MINUTE", &cfg.RegisterRateLimitPerMinute},
		{"SMTP_PORT", &cfg.SMTPPort},
	}
	for _, o := range ints {
		if v := os.Getenv(o.env); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*o.dst = n
			}
		}
	}
	bools := []struct {
		env string
		dst *bool
	}{
		{"MINIO_USE_SSL", &cfg.MinioUseSSL},
		{"ALLOW_ANY_STATUS_TRANSITION", &cfg.AllowAnyStatusTransition},
		{"REVEAL_ACCOUNT_EXISTENCE", &cfg.RevealAccountExistence},
	}
	for _, o := range bools {
		if v := os.Getenv(o.env); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*o.dst = b
			}
		}
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = splitList(v)
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = splitList(v)
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.StorageDriver == "" {
		cfg.StorageDriver = StorageLocal
	}
	if cfg.StorageDir == "" {
		cfg.StorageDir = "data"
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.TokenTTL == "" {
		cfg.TokenTTL = "24h"
	}
	if cfg.AIProvider == "" {
		cfg.AIProvider = "none"
	}
	if cfg.AMQPExchange == "" {
		cfg.AMQPExchange = "soutenance.notifications"
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 587
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set DATABASE_URL)")
	}
	if len(cfg.JWTSecret) < minJWTSecretBytes {
		return fmt.Errorf("config: jwtSecret must be at least %d bytes (set JWT_SECRET)", minJWTSecretBytes)
	}
	if _, err := ParseTokenTTL(cfg.TokenTTL); err != nil {
		return err
	}
	if _, err := ParseAITimeout(cfg.AITimeout); err != nil {
		return err
	}
	if _, err := ParsePublishTimeout(cfg.PublishTimeout); err != nil {
		return err
	}
	if cfg.LoginRateLimitPerMinute < 0 || cfg.RegisterRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if (cfg.LoginRateLimitPerMinute > 0 || cfg.RegisterRateLimitPerMinute > 0) && strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: rate limits require redisAddr")
	}
	if cfg.MaxUploadBytes < 0 {
		return errors.New("config: maxUploadBytes must be positive")
	}
	switch cfg.StorageDriver {
	case StorageLocal:
	case StorageMinio:
		if cfg.MinioEndpoint == "" || cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" || cfg.MinioBucket == "" {
			return errors.New("config: minio storage requires minioEndpoint, minioAccessKey, minioSecretKey and minioBucket")
		}
	default:
		return fmt.Errorf("config: unknown storageDriver %q", cfg.StorageDriver)
	}
	switch strings.ToLower(cfg.AIProvider) {
	case "none":
	case "gemini":
		if cfg.AIAPIKey == "" {
			return errors.New("config: gemini provider requires aiApiKey (set AI_API_KEY)")
		}
	case "ollama":
		if cfg.AIModel == "" {
			return errors.New("config: ollama provider requires aiModel")
		}
	case "openai":
		if cfg.AIBaseURL == "" || cfg.AIModel == "" {
			return errors.New("config: openai provider requires aiBaseURL and aiModel")
		}
	default:
		return fmt.Errorf("config: unknown aiProvider %q", cfg.AIProvider)
	}
	if (cfg.SMTPHost == "") != (cfg.SMTPFrom == "") {
		return errors.New("config: smtpHost and smtpFrom must be set together")
	}
	if (cfg.BootstrapManagerEmail == "") != (cfg.BootstrapManagerPassword == "") {
		return errors.New("config: bootstrapManagerEmail and bootstrapManagerPassword must be set together")
	}
	return nil
}

// ParseTokenTTL parses the bearer token lifetime.
func ParseTokenTTL(ttlStr string) (time.Duration, error) {
	if ttlStr == "" {
		return 24 * time.Hour, nil
	}
	dur, err := time.ParseDuration(ttlStr)
	if err != nil {
		return 0, fmt.Errorf("invalid tokenTTL duration: %w", err)
	}
	if dur <= 0 {
		return 0, errors.New("invalid tokenTTL duration: must be positive")
	}
	return dur, nil
}

// ParseAITimeout parses the advisory call timeout. Empty means 20s.
func ParseAITimeout(raw string) (time.Duration, error) {
	if raw == "" {
		return 20 * time.Second, nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid aiTimeout duration: %w", err)
	}
	if dur <= 0 {
		return 0, errors.New("invalid aiTimeout duration: must be positive")
	}
	return dur, nil
}

// ParsePublishTimeout parses how long a request may wait on notification
// delivery. Empty means 3s.
func ParsePublishTimeout(raw string) (time.Duration, error) {
	if raw == "" {
		return 3 * time.Second, nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid publishTimeout duration: %w", err)
	}
	if dur <= 0 {
		return 0, errors.New("invalid publishTimeout duration: must be positive")
	}
	return dur, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
