package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testYAML = `
server:
  port: "9090"
  mode: debug
jwt:
  secret: dev
  expire_hours: 2
ai:
  provider: gemini
  model: gemini-2.5-flash
storage:
  type: local
  local_path: %s
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func TestLoadConfig_DefaultsAndEnv(t *testing.T) {
	uploads := filepath.Join(t.TempDir(), "uploads")
	dir := writeConfig(t, strings.Replace(testYAML, "%s", uploads, 1))
	t.Setenv("AI_API_KEY", "secret-key")

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.AI.Provider != "gemini" || cfg.AI.APIKey != "secret-key" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.JWT.ExpireTime != 2*time.Hour {
		t.Fatalf("expire=%s", cfg.JWT.ExpireTime)
	}
	if cfg.Voice.RedisChannel != "interview_channel" || cfg.Session.ListLimit != 50 {
		t.Fatalf("defaults not applied: %+v %+v", cfg.Voice, cfg.Session)
	}
	if cfg.Session.FeedbackTimeout() != 90*time.Second || cfg.AI.Timeout() != 60*time.Second {
		t.Fatalf("timeouts")
	}
	if _, err := os.Stat(uploads); err != nil {
		t.Fatalf("local storage dir not created: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Mode: "release"}, JWT: JWTConfig{Secret: "short"}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("short secret accepted in release mode")
	}
	cfg = &Config{AI: AIConfig{Provider: "llama"}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("unknown ai provider accepted")
	}
	cfg = &Config{Storage: StorageConfig{Type: "s3"}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("unknown storage accepted")
	}
}
