package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeTempConfig writes content into a fresh config file and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "AWS_REGION", "S3_BUCKET", "REDIS_ADDR", "REDIS_PASSWORD", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY"} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `oiflow:
  name: "TestApp"
telegram:
  token: "abc"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Oiflow.Name != "TestApp" {
		t.Errorf("unexpected name: %s", cfg.Oiflow.Name)
	}
	if cfg.Reader.Timeout != 15*time.Second {
		t.Errorf("unexpected timeout: %s", cfg.Reader.Timeout)
	}
	if cfg.Storage.Backend != StorageBackendFile || cfg.Storage.File.Path != "agg_oi.json" {
		t.Errorf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if len(cfg.Classifier.Pinned) != 2 || cfg.Classifier.Threshold != 1 {
		t.Errorf("unexpected classifier defaults: %+v", cfg.Classifier)
	}
	if !cfg.Source.Binance.Enabled || cfg.Source.Binance.RateLimit.RequestsPerSecond != 20 {
		t.Errorf("unexpected binance defaults: %+v", cfg.Source.Binance)
	}
}

func TestLoadConfigOverridesPinned(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `telegram:
  token: "abc"
classifier:
  pinned: ["SOL"]
  threshold_stddev: 1.5
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if len(cfg.Classifier.Pinned) != 1 || cfg.Classifier.Pinned[0] != "SOL" {
		t.Errorf("unexpected pinned coins: %v", cfg.Classifier.Pinned)
	}
	if cfg.Classifier.Threshold != 1.5 {
		t.Errorf("unexpected threshold: %v", cfg.Classifier.Threshold)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", " env-token ")
	t.Setenv("TELEGRAM_CHAT_ID", "12345")
	t.Setenv("REDIS_ADDR", "redis:6379")
	path := writeTempConfig(t, `storage:
  backend: "redis"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Errorf("unexpected token: %q", cfg.Telegram.Token)
	}
	if cfg.Telegram.ChatID != 12345 {
		t.Errorf("unexpected chat id: %d", cfg.Telegram.ChatID)
	}
	if cfg.Storage.Redis.Addr != "redis:6379" {
		t.Errorf("unexpected redis addr: %s", cfg.Storage.Redis.Addr)
	}
}

func TestLoadConfigTokenFile(t *testing.T) {
	clearEnv(t)
	tokenPath := filepath.Join(t.TempDir(), "token.txt")
	if err := os.WriteFile(tokenPath, []byte("file-token\nignored\n"), 0o600); err != nil {
		t.Fatalf("write token: %v", err)
	}
	path := writeTempConfig(t, "telegram:\n  token_file: \""+tokenPath+"\"\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Telegram.Token != "file-token" {
		t.Errorf("unexpected token: %q", cfg.Telegram.Token)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := map[string]string{
		"missing token": `oiflow:
  name: "x"
`,
		"unknown backend": `telegram:
  token: "abc"
storage:
  backend: "tape"
`,
		"s3 without bucket": `telegram:
  token: "abc"
storage:
  backend: "s3"
  s3:
    region: "eu-west-1"
`,
		"no sources": `telegram:
  token: "abc"
source:
  binance:
    enabled: false
  bybit:
    enabled: false
  okx:
    enabled: false
`,
		"bad threshold": `telegram:
  token: "abc"
classifier:
  threshold_stddev: 0
`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			if _, err := LoadConfig(writeTempConfig(t, content)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestIsValidS3Bucket(t *testing.T) {
	cases := []struct {
		name  string
		valid bool
	}{
		{"valid-bucket", true},
		{"Invalid", false},
		{"ab", false},
		{"my..bucket", false},
	}
	for _, c := range cases {
		if got := isValidS3Bucket(c.name); got != c.valid {
			t.Errorf("isValidS3Bucket(%q) = %v, want %v", c.name, got, c.valid)
		}
	}
}

func TestResolvePath(t *testing.T) {
	if got := ResolvePath("custom.yml"); got != "custom.yml" {
		t.Errorf("explicit path rewritten: %s", got)
	}

	t.Setenv("APP_ENV", "prod")
	if got := AppEnvironment(); got != "production" {
		t.Errorf("unexpected environment: %s", got)
	}
	// config/config.production.yml does not exist in the package directory
	if got := ResolvePath(""); got != DefaultConfigPath {
		t.Errorf("unexpected resolved path: %s", got)
	}
}
