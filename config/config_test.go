package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty db path", func(c *Config) { c.DBPath = "" }, true},
		{"empty catalog path", func(c *Config) { c.CatalogPath = "" }, true},
		{"zero parallelism", func(c *Config) { c.Parallelism = 0 }, true},
		{"negative delay", func(c *Config) { c.Delay = -time.Second }, true},
		{"negative jitter", func(c *Config) { c.RandomDelay = -time.Second }, true},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, true},
		{"empty user agent", func(c *Config) { c.UserAgent = "" }, true},
		{"zero max queries", func(c *Config) { c.MaxQueries = 0 }, true},
		{"negative window", func(c *Config) { c.WindowDays = -1 }, true},
		{"threshold too high", func(c *Config) { c.MatchThreshold = 101 }, true},
		{"threshold floor", func(c *Config) { c.MatchThreshold = 0 }, false},
		{"zero delay allowed", func(c *Config) { c.Delay = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultRetailersAreValid(t *testing.T) {
	retailers := DefaultRetailers()
	if err := ValidateRetailers(retailers); err != nil {
		t.Errorf("built-in retailer table invalid: %v", err)
	}
	if len(retailers) != 10 {
		t.Errorf("got %d retailers, want 10", len(retailers))
	}
}

func TestLoadRetailers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retailers.yaml")
	doc := `
- name: AlphaMart
  search_url: "https://alpha.example/search?q={q}"
  parser: generic
- name: Jumia
  search_url: "https://www.jumia.co.ke/catalog/?q={q}"
  parser: jumia
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	retailers, err := LoadRetailers(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(retailers) != 2 {
		t.Fatalf("got %d retailers, want 2", len(retailers))
	}
	if retailers[0].Name != "AlphaMart" || retailers[0].Parser != "generic" {
		t.Errorf("first retailer = %+v", retailers[0])
	}
	if retailers[1].SearchURL != "https://www.jumia.co.ke/catalog/?q={q}" {
		t.Errorf("search url = %q", retailers[1].SearchURL)
	}
}

func TestLoadRetailersRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty list", ""},
		{"missing name", "- search_url: \"https://x.example/?q={q}\"\n"},
		{"no placeholder", "- name: X\n  search_url: \"https://x.example/search\"\n"},
		{"double placeholder", "- name: X\n  search_url: \"https://x.example/{q}/{q}\"\n"},
		{"not yaml", "{{{{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "retailers.yaml")
			if err := os.WriteFile(path, []byte(tt.doc), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadRetailers(path); err == nil {
				t.Error("want error")
			}
		})
	}
}

func TestLoadRetailersMissingFile(t *testing.T) {
	if _, err := LoadRetailers(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing file must return an error")
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("PRICEWATCH_TEST_STR", "hello")
	if v, ok := EnvString("PRICEWATCH_TEST_STR"); !ok || v != "hello" {
		t.Errorf("EnvString = %q, %v", v, ok)
	}
	if _, ok := EnvString("PRICEWATCH_TEST_ABSENT"); ok {
		t.Error("unset variable reported as present")
	}

	t.Setenv("PRICEWATCH_TEST_INT", "42")
	v, ok, err := EnvInt("PRICEWATCH_TEST_INT")
	if err != nil || !ok || v != 42 {
		t.Errorf("EnvInt = %d, %v, %v", v, ok, err)
	}
	t.Setenv("PRICEWATCH_TEST_INT", "not a number")
	if _, _, err := EnvInt("PRICEWATCH_TEST_INT"); err == nil {
		t.Error("malformed integer must return an error")
	}
}
