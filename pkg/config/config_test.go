package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "anonchat.yaml")
	data := `
server:
  address: "127.0.0.1"
  port: 9090
  db_path: "/var/lib/anonchat"
security:
  rate_limit:
    rps: 5
    burst: 10
feed:
  redis:
    addr: "localhost:6379"
    channel: "chat:feed"
retention:
  enabled: true
  cron: "0 3 * * *"
  period: "168h"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Server.DBPath != "/var/lib/anonchat" {
		t.Fatalf("server section wrong: %+v", cfg.Server)
	}
	if cfg.Security.RateLimit.RPS != 5 || cfg.Security.RateLimit.Burst != 10 {
		t.Fatalf("rate limit wrong: %+v", cfg.Security.RateLimit)
	}
	if cfg.Feed.Redis.Addr != "localhost:6379" || cfg.Feed.Redis.Channel != "chat:feed" {
		t.Fatalf("redis section wrong: %+v", cfg.Feed.Redis)
	}
	if !cfg.Retention.Enabled || cfg.Retention.Cron != "0 3 * * *" || cfg.Retention.Period != "168h" {
		t.Fatalf("retention section wrong: %+v", cfg.Retention)
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Fatalf("addr wrong: %s", cfg.Addr())
	}
}

func TestLoadMissingPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr() != ":8080" {
		t.Fatalf("default addr wrong: %s", cfg.Addr())
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("malformed yaml accepted")
	}
}

func TestApplyEnvOverlaysFileValues(t *testing.T) {
	t.Setenv("ANONCHAT_ADDR", "0.0.0.0:9999")
	t.Setenv("ANONCHAT_DB_PATH", "/tmp/chatdb")
	t.Setenv("ANONCHAT_JWT_SECRET", "envsecret")
	t.Setenv("ANONCHAT_LOG_LEVEL", "DEBUG")

	cfg := &Config{}
	cfg.Server.Port = 8080
	if !cfg.ApplyEnv() {
		t.Fatal("env not applied")
	}
	if cfg.Server.Address != "0.0.0.0" || cfg.Server.Port != 9999 {
		t.Fatalf("addr env ignored: %+v", cfg.Server)
	}
	if cfg.Server.DBPath != "/tmp/chatdb" || cfg.Auth.JWTSecret != "envsecret" {
		t.Fatalf("env ignored: %+v", cfg)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("log level not normalized: %q", cfg.Logging.Level)
	}
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("ANONCHAT_CONFIG", "")
	if got := ResolveConfigPath("/etc/anonchat.yaml", true); got != "/etc/anonchat.yaml" {
		t.Fatalf("explicit flag ignored: %q", got)
	}
	t.Setenv("ANONCHAT_CONFIG", "/opt/cfg.yaml")
	if got := ResolveConfigPath("", false); got != "/opt/cfg.yaml" {
		t.Fatalf("env ignored: %q", got)
	}
}
