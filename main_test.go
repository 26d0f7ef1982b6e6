package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"techbot/config"
	"techbot/provider"
	"techbot/tracing"
)

func TestLoadConfigFlags(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("TECHBOT_DATA_DIR", dataDir)
	t.Setenv("TECHBOT_PROVIDER", "")
	t.Setenv("TECHBOT_MODEL", "")
	t.Setenv("TECHBOT_DEPLOYMENT", "")
	t.Setenv("AZURE_OPENAI_DEPLOYMENT", "")

	tests := []struct {
		name           string
		cmder          rootCommander
		wantProvider   string
		wantDeployment string
		wantErr        string
	}{
		{
			name:           "ollama needs no key",
			cmder:          rootCommander{provider: "ollama", model: "llama3.2"},
			wantProvider:   config.ProviderOllama,
			wantDeployment: "llama3.2",
		},
		{
			name:    "azure without key",
			cmder:   rootCommander{provider: "azure"},
			wantErr: "API key",
		},
		{
			name:    "unknown provider",
			cmder:   rootCommander{provider: "bard"},
			wantErr: "unknown provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TECHBOT_API_KEY", "")
			t.Setenv("AZURE_OPENAI_API_KEY", "")
			tt.cmder.configPath = filepath.Join(t.TempDir(), "settings.toml")

			cfg, err := tt.cmder.loadConfig()
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("loadConfig() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("loadConfig() error = %v", err)
			}
			if cfg.ProviderType != tt.wantProvider {
				t.Errorf("ProviderType = %q, want %q", cfg.ProviderType, tt.wantProvider)
			}
			if got := cfg.DeploymentOrModel(); got != tt.wantDeployment {
				t.Errorf("DeploymentOrModel() = %q, want %q", got, tt.wantDeployment)
			}
			if cfg.Keybindings == nil || cfg.Keybindings.GetActionKey("quit") != "alt+q" {
				t.Errorf("keybindings not loaded: %+v", cfg.Keybindings)
			}
			if !config.FileExists(filepath.Join(dataDir, config.KeybindingsFileName)) {
				t.Error("keybindings template not written")
			}
		})
	}
}

func TestRootCmdFlags(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"config", "provider", "model", "debug"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("missing --%s flag", name)
		}
	}
}

func TestSettingsFileModelReachesSession(t *testing.T) {
	for _, name := range []string{
		"TECHBOT_PROVIDER", "TECHBOT_MODEL", "TECHBOT_DEPLOYMENT", "AZURE_OPENAI_DEPLOYMENT",
		"TECHBOT_ENDPOINT", "AZURE_OPENAI_ENDPOINT", "TECHBOT_API_KEY", "AZURE_OPENAI_API_KEY",
	} {
		t.Setenv(name, "")
	}
	t.Setenv("TECHBOT_DATA_DIR", t.TempDir())

	tests := []struct {
		name           string
		settings       string
		env            map[string]string
		wantDeployment string
		wantModel      string
	}{
		{
			name: "anthropic model from settings",
			settings: `[provider]
type = "anthropic"
api_key = "sk-ant"

[chat]
model = "claude-sonnet-4-5"
`,
			wantDeployment: "claude-sonnet-4-5",
			wantModel:      "claude-sonnet-4-5",
		},
		{
			name: "ollama model from env",
			settings: `[provider]
type = "ollama"
`,
			env:            map[string]string{"TECHBOT_MODEL": "llama3.2"},
			wantDeployment: "llama3.2",
			wantModel:      "llama3.2",
		},
		{
			name: "azure deployment differs from tokenizer model",
			settings: `[provider]
type = "azure"
endpoint = "https://example.openai.azure.com"
api_key = "key"
deployment = "chat-prod"

[chat]
model = "gpt-4o"
`,
			wantDeployment: "chat-prod",
			wantModel:      "gpt-4o",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := filepath.Join(t.TempDir(), "settings.toml")
			if err := os.WriteFile(path, []byte(tt.settings), 0600); err != nil {
				t.Fatal(err)
			}

			cmder := rootCommander{configPath: path}
			cfg, err := cmder.loadConfig()
			if err != nil {
				t.Fatalf("loadConfig() error = %v", err)
			}
			p, err := provider.FromConfig(cfg, nil)
			if err != nil {
				t.Fatalf("FromConfig() error = %v", err)
			}
			sess := newSession(cfg, p, nil, nil)

			if got := sess.Deployment(); got != tt.wantDeployment {
				t.Errorf("session deployment = %q, want %q", got, tt.wantDeployment)
			}
			if got := p.GetModel(); got != tt.wantDeployment {
				t.Errorf("provider model = %q, want %q", got, tt.wantDeployment)
			}
			if got := sess.Model(); got != tt.wantModel {
				t.Errorf("tokenizer model = %q, want %q", got, tt.wantModel)
			}
		})
	}
}

func TestNewTracerStdoutWritesFile(t *testing.T) {
	dataDir := t.TempDir()
	cfg := &config.Config{DataDirectory: dataDir, TracingExporter: string(tracing.ExporterStdout)}

	tracer, closeTraces, err := newTracer(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newTracer() error = %v", err)
	}
	_, span := tracer.StartCompletion(context.Background(), "gpt-4", 2)
	tracing.EndCompletion(span, 3, 12, nil)

	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := closeTraces(); err != nil {
		t.Fatalf("closing trace file: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dataDir, tracesFileName))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), tracing.SpanCompletion) {
		t.Errorf("trace file does not contain the completion span:\n%s", data)
	}
}

func TestNewTracerNone(t *testing.T) {
	cfg := &config.Config{DataDirectory: t.TempDir(), TracingExporter: "none"}

	tracer, closeTraces, err := newTracer(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newTracer() error = %v", err)
	}
	if tracer == nil {
		t.Fatal("nil tracer")
	}
	if err := closeTraces(); err != nil {
		t.Errorf("close error = %v", err)
	}
}
