package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                     string   `yaml:"port"`
	LogLevel                 string   `yaml:"logLevel"`
	MongoURI                 string   `yaml:"mongoURI"`
	MongoDatabase            string   `yaml:"mongoDatabase"`
	MinioEndpoint            string   `yaml:"minioEndpoint"`
	MinioAccessKey           string   `yaml:"minioAccessKey"`
	MinioSecretKey           string   `yaml:"minioSecretKey"`
	MinioBucket              string   `yaml:"minioBucket"`
	MinioUseSSL              bool     `yaml:"minioUseSSL"`
	RedisAddr                string   `yaml:"redisAddr"`
	RedisPassword            string   `yaml:"redisPassword"`
	SessionBackend           string   `yaml:"sessionBackend"` // "redis" or "jwt"
	SessionTTLHours          int      `yaml:"sessionTTLHours"`
	JWTSecret                string   `yaml:"jwtSecret"`
	AIProvider               string   `yaml:"aiProvider"` // "gemini", "openai", "ollama"
	AIBaseURL                string   `yaml:"aiBaseURL"`
	AIAPIKey                 string   `yaml:"aiAPIKey"`
	AIModel                  string   `yaml:"aiModel"`
	AIMaxTokens              int      `yaml:"aiMaxTokens"`
	AICallTimeoutSeconds     int      `yaml:"aiCallTimeoutSeconds"`
	ImageProviderBaseURL     string   `yaml:"imageProviderBaseURL"`
	ImageProviderAPIKey      string   `yaml:"imageProviderAPIKey"`
	ImageModel               string   `yaml:"imageModel"`
	SMTPAddr                 string   `yaml:"smtpAddr"`
	SMTPUsername             string   `yaml:"smtpUsername"`
	SMTPPassword             string   `yaml:"smtpPassword"`
	FromEmail                string   `yaml:"fromEmail"`
	PresignExpiryMinutes     int      `yaml:"presignExpiryMinutes"`
	MaxUploadBytes           int64    `yaml:"maxUploadBytes"`
	MaxAttachments           int      `yaml:"maxAttachments"`
	TrustedProxyCIDRs        []string `yaml:"trustedProxyCidrs"`
	SignupRateLimitPerMinute int      `yaml:"signupRateLimitPerMinute"`
	LoginRateLimitPerMinute  int      `yaml:"loginRateLimitPerMinute"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
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
	// Override with environment variables
	if v := os.Getenv("MONGO_URI"); v != "" {
		cfg.MongoURI = v
	}
	if v := os.Getenv("MONGO_DATABASE"); v != "" {
		cfg.MongoDatabase = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.MinioUseSSL = b
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("MYRIDE_SESSION_BACKEND"); v != "" {
		cfg.SessionBackend = strings.TrimSpace(v)
	}
	if v := os.Getenv("MYRIDE_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("MYRIDE_AI_PROVIDER"); v != "" {
		cfg.AIProvider = strings.TrimSpace(v)
	}
	if v := os.Getenv("MYRIDE_AI_BASE_URL"); v != "" {
		cfg.AIBaseURL = v
	}
	if v := os.Getenv("MYRIDE_AI_API_KEY"); v != "" {
		cfg.AIAPIKey = v
	}
	if v := os.Getenv("MYRIDE_AI_MODEL"); v != "" {
		cfg.AIModel = v
	}
	if v := os.Getenv("MYRIDE_AI_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AIMaxTokens = n
		}
	}
	if v := os.Getenv("MYRIDE_AI_CALL_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AICallTimeoutSeconds = n
		}
	}
	if v := os.Getenv("MYRIDE_IMAGE_BASE_URL"); v != "" {
		cfg.ImageProviderBaseURL = v
	}
	if v := os.Getenv("MYRIDE_IMAGE_API_KEY"); v != "" {
		cfg.ImageProviderAPIKey = v
	}
	if v := os.Getenv("MYRIDE_IMAGE_MODEL"); v != "" {
		cfg.ImageModel = v
	}
	if v := os.Getenv("SMTP_ADDR"); v != "" {
		cfg.SMTPAddr = v
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		cfg.SMTPUsername = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.SMTPPassword = v
	}
	if v := os.Getenv("MYRIDE_FROM_EMAIL"); v != "" {
		cfg.FromEmail = v
	}
	if v := os.Getenv("MYRIDE_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("MYRIDE_MAX_ATTACHMENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxAttachments = n
		}
	}
	if v := os.Getenv("MYRIDE_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := os.Getenv("MYRIDE_SIGNUP_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SignupRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("MYRIDE_LOGIN_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LoginRateLimitPerMinute = n
		}
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.MongoURI == "" {
		return errors.New("config: mongoURI is required (set in config.yaml or MONGO_URI)")
	}
	if cfg.MongoDatabase == "" {
		return errors.New("config: mongoDatabase is required (set in config.yaml)")
	}
	if cfg.MinioEndpoint == "" || cfg.MinioBucket == "" {
		return errors.New("config: minioEndpoint and minioBucket are required (set in config.yaml)")
	}
	switch cfg.SessionBackend {
	case "", "redis":
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required for redis sessions (set in config.yaml or REDIS_ADDR)")
		}
	case "jwt":
		if len(cfg.JWTSecret) < 32 {
			return errors.New("config: jwtSecret must be at least 32 bytes for jwt sessions (set MYRIDE_JWT_SECRET)")
		}
	default:
		return fmt.Errorf("config: unknown sessionBackend %q (want redis or jwt)", cfg.SessionBackend)
	}
	switch cfg.AIProvider {
	case "gemini", "openai", "ollama":
	case "":
		return errors.New("config: aiProvider is required (gemini, openai, or ollama)")
	default:
		return fmt.Errorf("config: unknown aiProvider %q", cfg.AIProvider)
	}
	if cfg.AIModel == "" {
		return errors.New("config: aiModel is required (set in config.yaml or MYRIDE_AI_MODEL)")
	}
	if (cfg.AIProvider == "gemini" || cfg.AIProvider == "openai") && cfg.AIAPIKey == "" {
		return errors.New("config: aiAPIKey is required for hosted providers (set MYRIDE_AI_API_KEY)")
	}
	if cfg.AICallTimeoutSeconds < 0 {
		return errors.New("config: aiCallTimeoutSeconds must be >= 0")
	}
	if cfg.PresignExpiryMinutes < 0 {
		return errors.New("config: presignExpiryMinutes must be >= 0")
	}
	if cfg.MaxUploadBytes < 0 {
		return errors.New("config: maxUploadBytes must be >= 0")
	}
	if cfg.MaxAttachments < 0 {
		return errors.New("config: maxAttachments must be >= 0")
	}
	if cfg.SignupRateLimitPerMinute < 0 || cfg.LoginRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
