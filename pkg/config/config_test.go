package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Success(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.App.Env != "production" {
		t.Fatalf("expected App.Env to be production, got %q", cfg.App.Env)
	}

	if cfg.App.WriteKey != "wk_test" {
		t.Fatalf("unexpected write key %q", cfg.App.WriteKey)
	}

	if cfg.PubSub.EventsTopic != "analytics-events" {
		t.Fatalf("unexpected events topic %q", cfg.PubSub.EventsTopic)
	}

	if got := cfg.PubSub.PublishTimeout; got != 15*time.Second {
		t.Fatalf("expected default publish timeout 15s, got %v", got)
	}

	if cfg.Pipeline.QueueSize != 1000 {
		t.Fatalf("expected default queue size 1000, got %d", cfg.Pipeline.QueueSize)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setMinimalEnv(t)
	if err := os.Unsetenv(EnvAppEnv); err != nil {
		t.Fatalf("failed to unset %s: %v", EnvAppEnv, err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected missing required env to return an error")
	}
}

func TestLoad_BlankTopicRejected(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvPubSubTopic, "   ")

	if _, err := Load(); err == nil {
		t.Fatal("expected blank topic to return an error")
	}
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv(EnvAppEnv, "production")
	t.Setenv(EnvWriteKey, "wk_test")
	t.Setenv(EnvGCPProjectID, "project-123")
	t.Setenv(EnvPubSubTopic, "analytics-events")
}

func TestAppConfigEnvHelpers(t *testing.T) {
	devConfig := AppConfig{Env: "DEV"}
	if !devConfig.IsDev() {
		t.Fatalf("expected IsDev true for %q", devConfig.Env)
	}
	if devConfig.IsProd() {
		t.Fatalf("expected IsProd false for %q", devConfig.Env)
	}

	prodConfig := AppConfig{Env: "Production"}
	if !prodConfig.IsProd() {
		t.Fatalf("expected IsProd true for %q", prodConfig.Env)
	}
	if prodConfig.IsDev() {
		t.Fatalf("expected IsDev false for %q", prodConfig.Env)
	}
}
