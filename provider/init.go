package provider

import (
	"go.uber.org/zap"

	"techbot/config"
	"techbot/model"
)

// FromConfig creates the provider selected by the application configuration.
//
// For Azure the configured deployment is the model sent with each request;
// for every other back end the chat model is used.
func FromConfig(cfg *config.Config, logger *zap.Logger) (model.Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	providerType := MapProviderIDToType(cfg.ProviderType)
	pc := Config{
		Type:       providerType,
		BaseURL:    cfg.Endpoint,
		Model:      cfg.Model,
		APIKey:     cfg.APIKey,
		APIVersion: cfg.APIVersion,
	}
	if providerType == ProviderTypeAzure {
		pc.Model = cfg.DeploymentOrModel()
	}

	p, err := NewProvider(pc)
	if err != nil {
		return nil, err
	}

	logger.Debug("provider initialized",
		zap.String("type", string(providerType)),
		zap.String("endpoint", pc.BaseURL),
		zap.String("model", p.GetModel()),
	)
	return p, nil
}
