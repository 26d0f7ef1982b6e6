package provider

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"techbot/model"
)

const pingTimeout = 10 * time.Second

// PingProviderMsg is sent when a provider ping completes
type PingProviderMsg struct {
	Model string
	Err   error
}

// PingProvider checks that the provider is reachable with the configured
// credentials. Used at startup to show connection status.
func PingProvider(p model.Provider) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()

		return PingProviderMsg{
			Model: p.GetModel(),
			Err:   p.Ping(ctx),
		}
	}
}

// FetchModels lists the provider's models for the model selector.
func FetchModels(p model.Provider) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()

		models, err := p.ListModels(ctx)
		return model.ModelsListMsg{Models: models, Err: err}
	}
}
