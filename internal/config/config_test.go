package config

import (
	"os"
	"path/filepath"
	"testing"
)

const validYAML = `
port: "8080"
logLevel: "info"
mongoURI: "mongodb://localhost:27017"
mongoDatabase: "myride"
minioEndpoint: "localhost:9000"
minioAccessKey: "minioadmin"
minioSecretKey: "minioadmin"
minioBucket: "myride"
redisAddr: "localhost:6379"
aiProvider: "ollama"
aiModel: "llama3.1"
presignExpiryMinutes: 15
maxAttachments: 10
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://db:27017")
	t.Setenv("MYRIDE_AI_MODEL", "llama3.2")
	t.Setenv("MYRIDE_AI_CALL_TIMEOUT_SECONDS", "90")
	t.Setenv("MYRIDE_MAX_ATTACHMENTS", "5")
	t.Setenv("MYRIDE_TRUSTED_PROXY_CIDRS", "10.0.0.0/8, 192.168.0.0/16")

	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.MongoURI != "mongodb://db:27017" {
		t.Fatalf("mongoURI = %q", cfg.MongoURI)
	}
	if cfg.AIModel != "llama3.2" {
		t.Fatalf("aiModel = %q", cfg.AIModel)
	}
	if cfg.AICallTimeoutSeconds != 90 {
		t.Fatalf("aiCallTimeoutSeconds = %d, want 90", cfg.AICallTimeoutSeconds)
	}
	if cfg.MaxAttachments != 5 {
		t.Fatalf("maxAttachments = %d, want 5", cfg.MaxAttachments)
	}
	if len(cfg.TrustedProxyCIDRs) != 2 {
		t.Fatalf("trustedProxyCidrs = %v", cfg.TrustedProxyCIDRs)
	}
}

func TestValidateConfigRejectsJWTWithoutSecret(t *testing.T) {
	cfg := FileConfig{
		Port:           "8080",
		MongoURI:       "mongodb://localhost:27017",
		MongoDatabase:  "myride",
		MinioEndpoint:  "localhost:9000",
		MinioBucket:    "myride",
		SessionBackend: "jwt",
		JWTSecret:      "too-short",
		AIProvider:     "ollama",
		AIModel:        "llama3.1",
	}
	if err := validateConfig(cfg); err == nil {
		t.Fatalf("validateConfig() expected error for short jwtSecret")
	}
}

func TestValidateConfigRejectsUnknownProvider(t *testing.T) {
	cfg := FileConfig{
		Port:          "8080",
		MongoURI:      "mongodb://localhost:27017",
		MongoDatabase: "myride",
		MinioEndpoint: "localhost:9000",
		MinioBucket:   "myride",
		RedisAddr:     "localhost:6379",
		AIProvider:    "bard",
		AIModel:       "x",
	}
	if err := validateConfig(cfg); err == nil {
		t.Fatalf("validateConfig() expected error for unknown aiProvider")
	}
}

func TestValidateConfigRequiresAPIKeyForHostedProviders(t *testing.T) {
	cfg := FileConfig{
		Port:          "8080",
		MongoURI:      "mongodb://localhost:27017",
		MongoDatabase: "myride",
		MinioEndpoint: "localhost:9000",
		MinioBucket:   "myride",
		RedisAddr:     "localhost:6379",
		AIProvider:    "gemini",
		AIModel:       "gemini-2.0-flash",
	}
	if err := validateConfig(cfg); err == nil {
		t.Fatalf("validateConfig() expected error for missing aiAPIKey")
	}
}
