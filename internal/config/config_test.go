package config

import (
	"os"
	"strings"
	"testing"
)

func useTempHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}

func TestLoadMissingFileYieldsEmptyConfig(t *testing.T) {
	useTempHome(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CurrentSite != "" || len(cfg.Sites) != 0 {
		t.Fatalf("expected empty config, got %+v", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	useTempHome(t)

	cfg := &Config{
		CurrentSite: "review",
		Sites: map[string]SiteConfig{
			"review": {
				URL:          "https://review.example.com",
				Username:     "admin",
				HTTPPassword: "secret",
				VerifyTLS:    true,
			},
		},
	}
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.CurrentSite != "review" {
		t.Fatalf("current-site: got %q", loaded.CurrentSite)
	}
	site := loaded.Sites["review"]
	if site.URL != "https://review.example.com" || site.Username != "admin" ||
		site.HTTPPassword != "secret" || !site.VerifyTLS {
		t.Fatalf("round trip lost data: %+v", site)
	}
}

func TestResolvePrecedence(t *testing.T) {
	cfg := &Config{
		CurrentSite: "prod",
		Sites: map[string]SiteConfig{
			"prod":    {URL: "https://prod.example.com"},
			"staging": {URL: "https://staging.example.com"},
		},
	}

	// Explicit name wins.
	site, name, err := cfg.Resolve("staging")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if name != "staging" || site.URL != "https://staging.example.com" {
		t.Fatalf("explicit name: got %q %+v", name, site)
	}

	// Environment beats current-site.
	t.Setenv("GERRIT_SITE", "staging")
	_, name, err = cfg.Resolve("")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if name != "staging" {
		t.Fatalf("env fallback: got %q", name)
	}
	os.Unsetenv("GERRIT_SITE")

	// current-site as last resort.
	_, name, err = cfg.Resolve("")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if name != "prod" {
		t.Fatalf("current-site fallback: got %q", name)
	}
}

func TestResolveErrors(t *testing.T) {
	t.Setenv("GERRIT_SITE", "")
	empty := &Config{Sites: map[string]SiteConfig{}}
	if _, _, err := empty.Resolve(""); err == nil || !strings.Contains(err.Error(), "no site selected") {
		t.Fatalf("expected no-site error, got %v", err)
	}

	cfg := &Config{Sites: map[string]SiteConfig{"prod": {}}}
	if _, _, err := cfg.Resolve("nope"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not-found error, got %v", err)
	}
}
