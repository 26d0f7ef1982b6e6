// Package provider adapts remote chat-completion APIs to model.Provider.
//
// Every adapter turns the vendor SDK's streaming response into a
// model.FragmentStream and reports a request the service refuses outright
// (HTTP 400) as model.ErrContentPolicy, before any fragment is produced.
//
// Supported back ends:
//   - Azure OpenAI deployments (default), via openai-go's azure options
//   - OpenAI and OpenRouter, via openai-go
//   - Anthropic, via anthropic-sdk-go
//   - a local Ollama server, via the ollama api client
//
// # Usage
//
//	p, err := provider.NewProvider(provider.Config{
//	    Type:       provider.ProviderTypeAzure,
//	    BaseURL:    "https://example.openai.azure.com",
//	    Model:      "gpt-4",
//	    APIKey:     key,
//	    APIVersion: "2024-02-15-preview",
//	})
//	stream, err := p.Stream(ctx, req)
package provider

// Note: The Provider interface and FragmentStream are defined in the model
// package (model/provider.go) to avoid import cycles. This package
// implements model.Provider.

// ProviderType identifies the provider implementation.
type ProviderType string

const (
	ProviderTypeAzure      ProviderType = "azure"
	ProviderTypeOllama     ProviderType = "ollama"
	ProviderTypeOpenRouter ProviderType = "openrouter"
	ProviderTypeOpenAI     ProviderType = "openai"
	ProviderTypeAnthropic  ProviderType = "anthropic"
)

// Config holds provider-specific configuration.
type Config struct {
	Type    ProviderType
	BaseURL string // Endpoint for Azure
	Model   string // Deployment name for Azure
	APIKey  string // Unused for Ollama

	// APIVersion is the Azure OpenAI REST API version.
	APIVersion string
}
