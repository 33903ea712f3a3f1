package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Port != 8080 || cfg.Mode != "release" || cfg.StaticPath != "./web" {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.PingPeriod != 54*time.Second || cfg.PongWait != 60*time.Second || cfg.SweepInterval != time.Minute {
		t.Errorf("durations = %s %s %s", cfg.PingPeriod, cfg.PongWait, cfg.SweepInterval)
	}
	if cfg.IdleTimeout != 0 || cfg.NATSURL != "" || cfg.NATSSubject != "poker.rooms" {
		t.Errorf("optional features = %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Errorf("allowed origins = %v", cfg.AllowedOrigins)
	}
	if cfg.Level() != zerolog.InfoLevel {
		t.Errorf("level = %v", cfg.Level())
	}
}

func TestLoadPrecedence(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.test.yaml")
	yaml := "mode: debug\nport: 9000\nreveal_policy: backfill\nidle_timeout: 30m\nallowed_origins:\n  - https://poker.example\n"
	if err := os.WriteFile(file, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("POKER_PORT", "9100")
	t.Setenv("POKER_LOG_LEVEL", "debug")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse([]string{"--backpressure=kick"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(file, fs)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Mode != "debug" || cfg.RevealPolicy != "backfill" || cfg.IdleTimeout != 30*time.Minute {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Port != 9100 || cfg.LogLevel != "debug" {
		t.Errorf("env must override file: port=%d level=%s", cfg.Port, cfg.LogLevel)
	}
	if cfg.Backpressure != "kick" {
		t.Errorf("flag not applied: %q", cfg.Backpressure)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://poker.example" {
		t.Errorf("allowed origins = %v", cfg.AllowedOrigins)
	}
}

func TestFlagBeatsEnv(t *testing.T) {
	t.Setenv("POKER_PORT", "9100")
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse([]string{"-p", "9200"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), fs)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Port != 9200 {
		t.Errorf("port = %d, want 9200", cfg.Port)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{Mode: "release", Port: 8080, LogLevel: "info", PingPeriod: time.Second, PongWait: 2 * time.Second, SendBuffer: 1}
	}
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"mode", func(c *Config) { c.Mode = "prod" }},
		{"port", func(c *Config) { c.Port = 70000 }},
		{"level", func(c *Config) { c.LogLevel = "loud" }},
		{"pong wait", func(c *Config) { c.PongWait = c.PingPeriod }},
		{"send buffer", func(c *Config) { c.SendBuffer = 0 }},
		{"idle timeout", func(c *Config) { c.IdleTimeout = -time.Second }},
	}
	ok := base()
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	for _, tt := range tests {
		c := base()
		tt.mutate(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}
