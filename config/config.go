package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Provider types understood by the provider factory.
const (
	ProviderAzure      = "azure"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderAnthropic  = "anthropic"
	ProviderOllama     = "ollama"
)

var knownProviders = []string{
	ProviderAzure,
	ProviderOpenAI,
	ProviderOpenRouter,
	ProviderAnthropic,
	ProviderOllama,
}

type ProviderSettings struct {
	Type       string `toml:"type"`
	Endpoint   string `toml:"endpoint"`
	APIKey     string `toml:"api_key"`
	APIVersion string `toml:"api_version"`
	Deployment string `toml:"deployment"`
}

type ChatSettings struct {
	Model          string `toml:"model"`
	SystemPrompt   string `toml:"system_prompt"`
	RequestTimeout string `toml:"request_timeout"`
}

type TracingSettings struct {
	Exporter     string `toml:"exporter"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
}

// Settings mirrors settings.toml.
type Settings struct {
	DataDirectory string           `toml:"data_directory"`
	Provider      ProviderSettings `toml:"provider"`
	Chat          ChatSettings     `toml:"chat"`
	Tracing       TracingSettings  `toml:"tracing"`
}

// Config is the resolved runtime configuration.
type Config struct {
	DataDirectory string
	SettingsPath  string

	ProviderType string
	Endpoint     string
	APIKey       string
	APIVersion   string
	Deployment   string

	// Model names the tokenizer used for usage estimates. It is separate
	// from Deployment because Azure deployments carry arbitrary names.
	Model          string
	SystemPrompt   string
	RequestTimeout time.Duration

	TracingExporter string
	OTLPEndpoint    string

	Keybindings *KeyBindingsConfig

	Debug bool
}

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// DeploymentOrModel returns the identifier sent to the completion API.
// Deployments only exist on Azure; every other provider is sent Model.
func (c *Config) DeploymentOrModel() string {
	if c.ProviderType == ProviderAzure && c.Deployment != "" {
		return c.Deployment
	}
	return c.Model
}

func CheckDebug() bool {
	debug := os.Getenv("TECHBOT_DEBUG")
	return debug == "true" || debug == "1"
}

// Load reads settings from path (GetSettingsFilePath when empty), creating a
// default file on first run, then applies environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = GetSettingsFilePath()
	}

	settings, err := LoadSettings(path)
	if err != nil {
		return nil, err
	}

	cfg, err := fromSettings(settings)
	if err != nil {
		return nil, err
	}
	cfg.SettingsPath = path
	cfg.applyEnvOverrides()
	cfg.Debug = cfg.Debug || CheckDebug()

	return cfg, nil
}

func fromSettings(s *Settings) (*Config, error) {
	cfg := &Config{
		DataDirectory:   s.DataDirectory,
		ProviderType:    strings.ToLower(s.Provider.Type),
		Endpoint:        s.Provider.Endpoint,
		APIKey:          s.Provider.APIKey,
		APIVersion:      s.Provider.APIVersion,
		Deployment:      s.Provider.Deployment,
		Model:           s.Chat.Model,
		SystemPrompt:    s.Chat.SystemPrompt,
		RequestTimeout:  DefaultRequestTimeout,
		TracingExporter: s.Tracing.Exporter,
		OTLPEndpoint:    s.Tracing.OTLPEndpoint,
		Keybindings:     DefaultKeybindings(),
	}

	if s.Chat.RequestTimeout != "" {
		d, err := time.ParseDuration(s.Chat.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid request_timeout %q: %w", s.Chat.RequestTimeout, err)
		}
		cfg.RequestTimeout = d
	}
	if cfg.DataDirectory == "" {
		cfg.DataDirectory = GetDefaultDataDir()
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.TracingExporter == "" {
		cfg.TracingExporter = "none"
	}

	return cfg, nil
}

// firstEnv returns the first non-empty value among the named variables.
func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func (c *Config) applyEnvOverrides() {
	if v := firstEnv("TECHBOT_PROVIDER"); v != "" {
		c.ProviderType = strings.ToLower(v)
	}
	if v := firstEnv("TECHBOT_ENDPOINT", "AZURE_OPENAI_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	if v := firstEnv("TECHBOT_API_KEY", "AZURE_OPENAI_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := firstEnv("TECHBOT_API_VERSION", "AZURE_OPENAI_API_VERSION", "OPENAI_API_VERSION"); v != "" {
		c.APIVersion = v
	}
	if v := firstEnv("TECHBOT_DEPLOYMENT", "AZURE_OPENAI_DEPLOYMENT"); v != "" {
		c.Deployment = v
	}
	if v := firstEnv("TECHBOT_MODEL"); v != "" {
		c.Model = v
	}
	if v := firstEnv("TECHBOT_SYSTEM_PROMPT"); v != "" {
		c.SystemPrompt = v
	}
	if v := firstEnv("TECHBOT_DATA_DIR"); v != "" {
		c.DataDirectory = v
	}
	if v := firstEnv("TECHBOT_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.RequestTimeout = d
		}
	}
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	known := false
	for _, p := range knownProviders {
		if c.ProviderType == p {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown provider type %q (expected one of %s)", c.ProviderType, strings.Join(knownProviders, ", "))
	}

	if c.ProviderType != ProviderOllama && c.APIKey == "" {
		return fmt.Errorf("%s provider requires an API key (set api_key or TECHBOT_API_KEY)", c.ProviderType)
	}
	if c.ProviderType == ProviderAzure {
		if c.Endpoint == "" {
			return fmt.Errorf("azure provider requires an endpoint (set endpoint or AZURE_OPENAI_ENDPOINT)")
		}
		if c.APIVersion == "" {
			return fmt.Errorf("azure provider requires an api_version")
		}
		if c.Deployment == "" {
			return fmt.Errorf("azure provider requires a deployment name")
		}
	}
	if c.DeploymentOrModel() == "" {
		return fmt.Errorf("no model or deployment configured")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}

	switch c.TracingExporter {
	case "none", "stdout", "otlp":
	default:
		return fmt.Errorf("unknown tracing exporter %q", c.TracingExporter)
	}

	return nil
}
