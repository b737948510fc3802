package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("MERCHANT_USERNAME", "")
	t.Setenv("EVENT_CHANNEL", "")

	cfg := Load()
	if cfg.Address() != ":8080" {
		t.Fatalf("expected default address :8080, got %q", cfg.Address())
	}
	if cfg.MerchantUsername != "merchant" {
		t.Fatalf("expected default merchant username, got %q", cfg.MerchantUsername)
	}
	if cfg.EventChannel != "tokoku.events" {
		t.Fatalf("expected default event channel, got %q", cfg.EventChannel)
	}
}
