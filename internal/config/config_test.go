package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindConfigExplicit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	os.WriteFile(path, []byte("bridge:\n  kind: rosbridge\n"), 0600)

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig(%q) error: %v", path, err)
	}
	if got != path {
		t.Errorf("FindConfig(%q) = %q, want %q", path, got, path)
	}
}

func TestFindConfigExplicitMissing(t *testing.T) {
	_, err := FindConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("FindConfig with missing explicit path should error")
	}
}

func TestFindConfigCWD(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("bridge:\n  kind: mqtt\n"), 0600)

	orig, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(orig)

	got, err := FindConfig("")
	if err != nil {
		t.Fatalf("FindConfig(\"\") error: %v", err)
	}
	if got != "config.yaml" {
		t.Errorf("FindConfig(\"\") = %q, want %q", got, "config.yaml")
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("bridge:\n  kind: mqtt\n  mqtt_broker: mqtt://localhost:1883\n  mqtt_password: ${SIMREQ_TEST_PASSWORD}\n"), 0600)
	os.Setenv("SIMREQ_TEST_PASSWORD", "secret123")
	defer os.Unsetenv("SIMREQ_TEST_PASSWORD")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Bridge.MQTTPassword != "secret123" {
		t.Errorf("mqtt_password = %q, want %q", cfg.Bridge.MQTTPassword, "secret123")
	}
}

func TestLoadAppliesBridgeDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("data_dir: /var/lib/simreq\n"), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Bridge.Kind != "rosbridge" {
		t.Errorf("expected default bridge.kind rosbridge, got %q", cfg.Bridge.Kind)
	}
	if cfg.Catalog.Path != filepath.Join("/var/lib/simreq", "catalog.db") {
		t.Errorf("expected catalog path derived from data_dir, got %q", cfg.Catalog.Path)
	}
}

func TestValidateRejectsUnknownBridgeKind(t *testing.T) {
	cfg := Default()
	cfg.Bridge.Kind = "carrier-pigeon"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for an unknown bridge kind")
	}
}

func TestValidateRequiresMQTTBroker(t *testing.T) {
	cfg := Default()
	cfg.Bridge.Kind = "mqtt"
	cfg.Bridge.MQTTBroker = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error when mqtt is selected without a broker")
	}
}

func TestValidateRejectsNegativeTimeouts(t *testing.T) {
	cfg := Default()
	cfg.Timeouts.MaxSeconds = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for a negative max_seconds")
	}
}

func TestGitHubStatusConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  GitHubStatusConfig
		want bool
	}{
		{"all set", GitHubStatusConfig{Enabled: true, Token: "t", Repo: "o/r"}, true},
		{"disabled", GitHubStatusConfig{Enabled: false, Token: "t", Repo: "o/r"}, false},
		{"no token", GitHubStatusConfig{Enabled: true, Repo: "o/r"}, false},
		{"no repo", GitHubStatusConfig{Enabled: true, Token: "t"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Configured(); got != tt.want {
				t.Errorf("Configured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default() config should validate, got: %v", err)
	}
}
