package config

import "time"

const (
	DefaultSystemPrompt   = "You are an expert assistant. You can answer to anything."
	DefaultRequestTimeout = 120 * time.Second
	DefaultAPIVersion     = "2024-02-15-preview"
)

func DefaultSettings() *Settings {
	return &Settings{
		DataDirectory: "~/.local/share/techbot",
		Provider: ProviderSettings{
			Type:       ProviderAzure,
			APIVersion: DefaultAPIVersion,
			Deployment: "gpt-4",
		},
		Chat: ChatSettings{
			Model:          "gpt-4",
			SystemPrompt:   DefaultSystemPrompt,
			RequestTimeout: DefaultRequestTimeout.String(),
		},
		Tracing: TracingSettings{
			Exporter: "none",
		},
	}
}

func GenerateSettingsTemplate() string {
	return `# techbot configuration
# Location: ~/.config/techbot/settings.toml
# This file uses TOML format: https://toml.io

# Directory for the debug log and trace output
data_directory = "~/.local/share/techbot"

[provider]
# One of: azure, openai, openrouter, anthropic, ollama
type = "azure"

# Azure resource endpoint, or base URL for the other providers
endpoint = ""

# API key (AZURE_OPENAI_API_KEY or TECHBOT_API_KEY override this)
api_key = ""

api_version = "2024-02-15-preview"

# Deployment (Azure) or model name sent with each request
deployment = "gpt-4"

[chat]
# Model whose tokenizer is used for the usage estimate
model = "gpt-4"

system_prompt = "You are an expert assistant. You can answer to anything."

# Maximum time to wait for a complete response
request_timeout = "2m0s"

[tracing]
# One of: none, stdout, otlp
exporter = "none"
otlp_endpoint = ""
`
}
