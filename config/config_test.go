package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"TECHBOT_PROVIDER", "TECHBOT_ENDPOINT", "TECHBOT_API_KEY", "TECHBOT_API_VERSION",
		"TECHBOT_DEPLOYMENT", "TECHBOT_MODEL", "TECHBOT_SYSTEM_PROMPT", "TECHBOT_DATA_DIR",
		"TECHBOT_REQUEST_TIMEOUT", "TECHBOT_DEBUG",
		"AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_API_KEY", "AZURE_OPENAI_API_VERSION",
		"OPENAI_API_VERSION", "AZURE_OPENAI_DEPLOYMENT",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadCreatesDefaultSettings(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "settings.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !FileExists(path) {
		t.Fatal("Load() did not create settings file")
	}

	if cfg.ProviderType != ProviderAzure {
		t.Errorf("ProviderType = %q, want azure", cfg.ProviderType)
	}
	if cfg.Model != "gpt-4" || cfg.Deployment != "gpt-4" {
		t.Errorf("Model/Deployment = %q/%q", cfg.Model, cfg.Deployment)
	}
	if cfg.SystemPrompt != DefaultSystemPrompt {
		t.Errorf("SystemPrompt = %q", cfg.SystemPrompt)
	}
	if cfg.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("RequestTimeout = %s", cfg.RequestTimeout)
	}

	// The written template must decode to the same defaults.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("Load() second run error = %v", err)
	}
	if again.RequestTimeout != cfg.RequestTimeout || again.APIVersion != cfg.APIVersion || again.SystemPrompt != cfg.SystemPrompt {
		t.Errorf("template decoded to %+v, want %+v", again, cfg)
	}
}

func TestLoadSettingsFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "settings.toml")
	content := `
data_directory = "/tmp/techbot-test"

[provider]
type = "OpenAI"
api_key = "sk-file"

[chat]
model = "gpt-4o"
request_timeout = "30s"

[tracing]
exporter = "stdout"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ProviderType != ProviderOpenAI || cfg.APIKey != "sk-file" {
		t.Errorf("provider = %q key = %q", cfg.ProviderType, cfg.APIKey)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %s, want 30s", cfg.RequestTimeout)
	}
	if cfg.DeploymentOrModel() != "gpt-4o" {
		t.Errorf("DeploymentOrModel() = %q, want model fallback", cfg.DeploymentOrModel())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadRejectsBadSettings(t *testing.T) {
	clearEnv(t)
	tests := map[string]string{
		"bad duration": "[chat]\nrequest_timeout = \"soon\"\n",
		"unknown key":  "[provider]\nkind = \"azure\"\n",
		"bad toml":     "[provider\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "settings.toml")
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() expected error")
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "settings.toml")

	t.Setenv("AZURE_OPENAI_API_KEY", "azure-key")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com")
	t.Setenv("TECHBOT_DEPLOYMENT", "chat-prod")
	t.Setenv("TECHBOT_REQUEST_TIMEOUT", "45s")
	t.Setenv("TECHBOT_DEBUG", "1")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIKey != "azure-key" || cfg.Endpoint != "https://example.openai.azure.com" {
		t.Errorf("azure env not applied: %+v", cfg)
	}
	if cfg.Deployment != "chat-prod" || cfg.Model != "gpt-4" {
		t.Errorf("Deployment/Model = %q/%q", cfg.Deployment, cfg.Model)
	}
	if cfg.RequestTimeout != 45*time.Second {
		t.Errorf("RequestTimeout = %s", cfg.RequestTimeout)
	}
	if !cfg.Debug {
		t.Error("Debug not enabled from TECHBOT_DEBUG")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	t.Setenv("TECHBOT_API_KEY", "override")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIKey != "override" {
		t.Errorf("TECHBOT_API_KEY should win over AZURE_OPENAI_API_KEY, got %q", cfg.APIKey)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			ProviderType:    ProviderAzure,
			Endpoint:        "https://x.openai.azure.com",
			APIKey:          "k",
			APIVersion:      DefaultAPIVersion,
			Deployment:      "gpt-4",
			Model:           "gpt-4",
			RequestTimeout:  time.Minute,
			TracingExporter: "none",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown provider", func(c *Config) { c.ProviderType = "bard" }, "unknown provider"},
		{"missing key", func(c *Config) { c.APIKey = "" }, "API key"},
		{"ollama without key", func(c *Config) { c.ProviderType = ProviderOllama; c.APIKey = "" }, ""},
		{"azure endpoint", func(c *Config) { c.Endpoint = "" }, "endpoint"},
		{"azure deployment", func(c *Config) { c.Deployment = "" }, "deployment"},
		{"timeout", func(c *Config) { c.RequestTimeout = 0 }, "request_timeout"},
		{"tracing", func(c *Config) { c.TracingExporter = "jaeger" }, "tracing exporter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, closeFn, err := NewLogger(t.TempDir(), false)
	if err != nil || logger == nil {
		t.Fatalf("NewLogger(debug=false) = %v, %v", logger, err)
	}
	closeFn()

	dir := filepath.Join(t.TempDir(), "data")
	logger, closeFn, err = NewLogger(dir, true)
	if err != nil {
		t.Fatalf("NewLogger(debug=true) error = %v", err)
	}
	logger.Info("hello from test")
	closeFn()

	data, err := os.ReadFile(filepath.Join(dir, DebugLogName))
	if err != nil {
		t.Fatalf("reading debug log: %v", err)
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Errorf("debug log missing entry: %q", data)
	}
}

func TestExpandPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	if got := ExpandPath("~/data"); got != "/home/tester/data" {
		t.Errorf("ExpandPath(~/data) = %q", got)
	}
	if got := ExpandPath(""); got != "" {
		t.Errorf("ExpandPath(\"\") = %q", got)
	}
}
