package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/firasghr/GoChallengeSolver/config"
	"github.com/firasghr/GoChallengeSolver/disasm"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `{
		"target_url": "https://example.com/protected",
		"proxy_file": "proxies.txt",
		"request_timeout": "15s",
		"workers": 4,
		"heuristics": {
			"dispatcher_min_statements": 80,
			"key_mask": 127
		}
	}`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.TargetURL != "https://example.com/protected" {
		t.Errorf("TargetURL = %q", cfg.TargetURL)
	}
	if cfg.ProxyFile != "proxies.txt" {
		t.Errorf("ProxyFile = %q", cfg.ProxyFile)
	}
	if time.Duration(cfg.RequestTimeout) != 15*time.Second {
		t.Errorf("RequestTimeout = %v, want 15s", time.Duration(cfg.RequestTimeout))
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers)
	}
	// Fields absent from the file keep their defaults.
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want default 3", cfg.MaxRetries)
	}
	if cfg.Heuristics.DispatcherMinStatements != 80 {
		t.Errorf("DispatcherMinStatements = %d, want 80", cfg.Heuristics.DispatcherMinStatements)
	}
	if cfg.Heuristics.KeyMask != 127 {
		t.Errorf("KeyMask = %d, want 127", cfg.Heuristics.KeyMask)
	}
}

func TestLoad_NanosecondDuration(t *testing.T) {
	path := writeConfig(t, `{"request_timeout": 5000000000}`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if time.Duration(cfg.RequestTimeout) != 5*time.Second {
		t.Errorf("RequestTimeout = %v, want 5s", time.Duration(cfg.RequestTimeout))
	}
}

func TestLoad_UnknownField(t *testing.T) {
	path := writeConfig(t, `{"target_url": "x", "tagret_url": "typo"}`)

	if _, err := config.Load(path); err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestDefault(t *testing.T) {
	cfg := config.Default()
	if time.Duration(cfg.RequestTimeout) != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", time.Duration(cfg.RequestTimeout))
	}
	if cfg.Workers != 1 {
		t.Errorf("Workers = %d, want 1", cfg.Workers)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
}

func TestEngineHeuristics_ZeroKeepsDefaults(t *testing.T) {
	cfg := config.Default()

	got := cfg.EngineHeuristics()
	want := disasm.DefaultHeuristics()
	if got != want {
		t.Errorf("EngineHeuristics() = %+v, want defaults %+v", got, want)
	}
}

func TestEngineHeuristics_OverridesApply(t *testing.T) {
	cfg := config.Default()
	cfg.Heuristics.DispatcherMinStatements = 80
	cfg.Heuristics.CharsetLen = 64

	got := cfg.EngineHeuristics()
	if got.DispatcherMinStatements != 80 {
		t.Errorf("DispatcherMinStatements = %d, want 80", got.DispatcherMinStatements)
	}
	if got.CharsetLen != 64 {
		t.Errorf("CharsetLen = %d, want 64", got.CharsetLen)
	}
	// Untouched fields keep the engine defaults.
	if got.MarkerIndex != disasm.DefaultHeuristics().MarkerIndex {
		t.Errorf("MarkerIndex = %d, want default", got.MarkerIndex)
	}
}
