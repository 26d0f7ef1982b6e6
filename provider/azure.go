package provider

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"

	"techbot/model"
)

// DefaultAzureAPIVersion is used when no API version is configured.
const DefaultAzureAPIVersion = "2024-02-15-preview"

// AzureProvider implements model.Provider against an Azure OpenAI resource.
// The model sent with each request is the deployment name; the azure
// request options route it to /openai/deployments/{deployment}.
type AzureProvider struct {
	chatCompletions
	endpoint string
}

// NewAzureProvider creates a provider for the given endpoint and deployment.
func NewAzureProvider(endpoint, apiKey, apiVersion, deployment string, opts ...option.RequestOption) (*AzureProvider, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("Azure OpenAI endpoint is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Azure OpenAI API key is required")
	}
	if deployment == "" {
		return nil, fmt.Errorf("Azure OpenAI deployment is required")
	}
	if apiVersion == "" {
		apiVersion = DefaultAzureAPIVersion
	}

	opts = append([]option.RequestOption{
		azure.WithEndpoint(endpoint, apiVersion),
		azure.WithAPIKey(apiKey),
	}, opts...)

	return &AzureProvider{
		chatCompletions: chatCompletions{
			client: openai.NewClient(opts...),
			name:   "Azure OpenAI",
			model:  deployment,
		},
		endpoint: endpoint,
	}, nil
}

// ListModels returns the configured deployment. Deployments are managed
// through the Azure control plane, not the inference endpoint.
func (p *AzureProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	deployment := p.GetModel()
	return []model.ModelInfo{{
		Name:         deployment,
		InternalName: deployment,
		Provider:     string(ProviderTypeAzure),
	}}, nil
}

// Ping lists the base models visible to the resource.
func (p *AzureProvider) Ping(ctx context.Context) error {
	if _, err := p.listModels(ctx); err != nil {
		return fmt.Errorf("Azure OpenAI ping failed at %s: %w", p.endpoint, err)
	}
	return nil
}
