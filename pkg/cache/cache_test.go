package cache_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/JaimeStill/page-ingest/pkg/cache"
)

func TestConfig_Finalize_Defaults(t *testing.T) {
	cfg := &cache.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	if cfg.Addr != "localhost:6379" {
		t.Errorf("Addr = %q, want %q", cfg.Addr, "localhost:6379")
	}
	if cfg.DialTimeoutDuration() != 5*time.Second {
		t.Errorf("DialTimeoutDuration() = %v, want %v", cfg.DialTimeoutDuration(), 5*time.Second)
	}
}

func TestConfig_Finalize_Env(t *testing.T) {
	t.Setenv("TEST_REDIS_ADDR", "redis:6380")
	t.Setenv("TEST_REDIS_DB", "3")

	cfg := &cache.Config{}
	if err := cfg.Finalize(&cache.Env{Addr: "TEST_REDIS_ADDR", DB: "TEST_REDIS_DB"}); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	if cfg.Addr != "redis:6380" || cfg.DB != 3 {
		t.Errorf("addr/db = %s/%d, want redis:6380/3", cfg.Addr, cfg.DB)
	}
}

func TestConfig_Finalize_Invalid(t *testing.T) {
	cfg := &cache.Config{DialTimeout: "soon"}
	if err := cfg.Finalize(nil); err == nil {
		t.Error("Finalize() succeeded with invalid dial_timeout")
	}
}

func TestNew(t *testing.T) {
	cfg := &cache.Config{}
	cfg.Finalize(nil)

	sys := cache.New(cfg, slog.New(slog.DiscardHandler))
	if sys.Client() == nil {
		t.Fatal("Client() returned nil")
	}
	if got := sys.Client().Options().Addr; got != cfg.Addr {
		t.Errorf("client addr = %q, want %q", got, cfg.Addr)
	}
}
