package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("AUTH_KEY", "abc")
	t.Setenv("SMARTSHEET_ACCESS_TOKEN", "token")
	t.Setenv("SHEET_UNITS", "1")
	t.Setenv("SHEET_BID_UNITS", "2")
	t.Setenv("SHEET_SUBMISSIONS", "3")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Fatalf("expected 5m cache ttl, got %s", cfg.Cache.TTL)
	}
	if cfg.Enrich.Mode != "off" {
		t.Fatalf("expected enrichment off, got %s", cfg.Enrich.Mode)
	}
	if cfg.BidStep != 5 {
		t.Fatalf("expected bid step 5, got %v", cfg.BidStep)
	}
	if cfg.Location().String() != "America/Chicago" {
		t.Fatalf("unexpected location %s", cfg.Location())
	}
	if cfg.Smartsheet.Sheets.Submissions != "3" {
		t.Fatalf("unexpected submissions sheet %s", cfg.Smartsheet.Sheets.Submissions)
	}
}

func TestLoad_MissingSheet(t *testing.T) {
	setRequired(t)
	t.Setenv("SHEET_BID_UNITS", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing SHEET_BID_UNITS")
	}
}

func TestLoad_InvalidEnrichMode(t *testing.T) {
	setRequired(t)
	t.Setenv("ENRICH_MODE", "carrier-pigeon")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for bad ENRICH_MODE")
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("CACHE_TTL", "0s")
	t.Setenv("ENRICH_MODE", "Browser")
	t.Setenv("ENRICH_CONCURRENCY", "0")
	t.Setenv("ENRICH_SETTLE_MS", "1500")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Cache.TTL != 0 {
		t.Fatalf("expected ttl 0, got %s", cfg.Cache.TTL)
	}
	if cfg.Enrich.Mode != "browser" {
		t.Fatalf("expected browser mode, got %s", cfg.Enrich.Mode)
	}
	if cfg.Enrich.Concurrency != 1 {
		t.Fatalf("expected concurrency clamped to 1, got %d", cfg.Enrich.Concurrency)
	}
	if cfg.Enrich.SettleDelay != 1500*time.Millisecond {
		t.Fatalf("unexpected settle delay %s", cfg.Enrich.SettleDelay)
	}
}
