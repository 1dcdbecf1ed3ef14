package config_test

import (
	"testing"
	"time"

	"wahub/services/whatsapp-api/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("WA_ADMIN_SECRET", "super-secret")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ServiceName != "whatsapp-api" {
		t.Errorf("ServiceName = %q, want whatsapp-api", cfg.ServiceName)
	}
	if cfg.HTTPPort != 8190 {
		t.Errorf("HTTPPort = %d, want 8190", cfg.HTTPPort)
	}
	if cfg.MaxReconnectAttempts != 30 {
		t.Errorf("MaxReconnectAttempts = %d, want 30", cfg.MaxReconnectAttempts)
	}
	if cfg.ReconnectDelay != time.Minute {
		t.Errorf("ReconnectDelay = %v, want 1m", cfg.ReconnectDelay)
	}
	if cfg.RestoreInterval != time.Second {
		t.Errorf("RestoreInterval = %v, want 1s", cfg.RestoreInterval)
	}
	if cfg.WebhookTimeout != 5*time.Second {
		t.Errorf("WebhookTimeout = %v, want 5s", cfg.WebhookTimeout)
	}
	if cfg.Addr() != ":8190" {
		t.Errorf("Addr() = %q, want :8190", cfg.Addr())
	}
}

func TestLoadRequiresAdminSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
	}{
		{name: "unset", secret: ""},
		{name: "whitespace only", secret: "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("WA_ADMIN_SECRET", tt.secret)

			if _, err := config.Load(); err == nil {
				t.Errorf("Load() error = nil, want admin secret validation error")
			}
		})
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WA_ADMIN_SECRET", "super-secret")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("WA_MAX_RECONNECT_ATTEMPTS", "5")
	t.Setenv("WA_RECONNECT_DELAY", "30s")
	t.Setenv("WA_WEBHOOK_TIMEOUT", "2s")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.HTTPPort != 9000 {
		t.Errorf("HTTPPort = %d, want 9000", cfg.HTTPPort)
	}
	if cfg.MaxReconnectAttempts != 5 {
		t.Errorf("MaxReconnectAttempts = %d, want 5", cfg.MaxReconnectAttempts)
	}
	if cfg.ReconnectDelay != 30*time.Second {
		t.Errorf("ReconnectDelay = %v, want 30s", cfg.ReconnectDelay)
	}
	if cfg.WebhookTimeout != 2*time.Second {
		t.Errorf("WebhookTimeout = %v, want 2s", cfg.WebhookTimeout)
	}
}

func TestLoadClampsLifecycleValues(t *testing.T) {
	t.Setenv("WA_ADMIN_SECRET", "super-secret")
	t.Setenv("WA_RESTORE_INTERVAL", "10ms")
	t.Setenv("WA_MAX_RECONNECT_ATTEMPTS", "-1")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.RestoreInterval != time.Second {
		t.Errorf("RestoreInterval = %v, want clamped to 1s", cfg.RestoreInterval)
	}
	if cfg.MaxReconnectAttempts != 30 {
		t.Errorf("MaxReconnectAttempts = %d, want clamped to 30", cfg.MaxReconnectAttempts)
	}
}
