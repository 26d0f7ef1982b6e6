package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"techbot/config"
	"techbot/model"
	"techbot/provider"
	"techbot/session"
	"techbot/tokens"
	"techbot/tracing"
	"techbot/ui"
)

const Version = "v0.1.0"

// tracesFileName receives spans when the stdout exporter is selected.
const tracesFileName = "traces.json"

const rootLongDesc string = `techbot is a terminal chat client for hosted and local LLMs.

Replies stream into the conversation as they arrive. The sidebar shows the
estimated token usage of the conversation and lets you stage an image to
add to it.

Settings are read from settings.toml in the config directory and can be
overridden with TECHBOT_* or AZURE_OPENAI_* environment variables.

Examples:
  techbot
  techbot --provider ollama --model llama3.2
  techbot --config ./settings.toml --debug`

const rootShortDesc string = "Chat with an LLM in your terminal"

type rootCommander struct {
	configPath string
	provider   string
	model      string
	debug      bool
}

func newRootCmd() *cobra.Command {
	cmder := &rootCommander{}

	cmd := &cobra.Command{
		Use:           "techbot",
		Short:         rootShortDesc,
		Long:          rootLongDesc,
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to settings.toml")
	cmd.Flags().StringVarP(&cmder.provider, "provider", "p", "", "Provider type (azure, openai, openrouter, anthropic, ollama)")
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model or deployment to chat with")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Write debug logs to the data directory")

	return cmd
}

// loadConfig resolves settings, environment and flags, in that order.
func (c *rootCommander) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}

	if c.provider != "" {
		cfg.ProviderType = strings.ToLower(c.provider)
	}
	if c.model != "" {
		cfg.Model = c.model
		cfg.Deployment = ""
		if cfg.ProviderType == config.ProviderAzure {
			cfg.Deployment = c.model
		}
	}
	cfg.Debug = cfg.Debug || c.debug

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	kb, err := config.LoadKeybindings(cfg.DataDir())
	if err != nil {
		return nil, err
	}
	cfg.Keybindings = kb

	return cfg, nil
}

func (c *rootCommander) run(ctx context.Context) error {
	cfg, err := c.loadConfig()
	if err != nil {
		showStartupError("Configuration Error", err)
		return err
	}

	logger, closeLog, err := config.NewLogger(cfg.DataDir(), cfg.Debug)
	if err != nil {
		return err
	}
	defer closeLog()

	tracer, closeTraces, err := newTracer(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
		if err := closeTraces(); err != nil {
			logger.Warn("closing trace file failed", zap.Error(err))
		}
	}()

	p, err := provider.FromConfig(cfg, logger)
	if err != nil {
		showStartupError("Provider Error", err)
		return err
	}

	sess := newSession(cfg, p, logger, tracer)

	logger.Info("techbot starting",
		zap.String("version", Version),
		zap.String("provider", cfg.ProviderType),
		zap.String("deployment", sess.Deployment()),
	)

	program := tea.NewProgram(
		ui.NewAppView(sess, p, cfg.Keybindings, logger),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("error running techbot: %w", err)
	}
	return nil
}

// newSession builds the conversation session for p. Only Azure sends a
// deployment name; other providers are sent the chat model.
func newSession(cfg *config.Config, p model.Provider, logger *zap.Logger, tracer *tracing.Tracer) *session.Session {
	return session.New(p, tokens.NewEstimator(tokens.DefaultRegistry(), logger), session.Options{
		Model:        cfg.Model,
		Deployment:   cfg.DeploymentOrModel(),
		SystemPrompt: cfg.SystemPrompt,
		Timeout:      cfg.RequestTimeout,
		Logger:       logger,
		Tracer:       tracer,
	})
}

// newTracer builds the tracer. Stdout traces go to a file in the data
// directory because the terminal belongs to the UI. The returned func closes
// that file and must run after the tracer is shut down.
func newTracer(ctx context.Context, cfg *config.Config) (*tracing.Tracer, func() error, error) {
	noClose := func() error { return nil }
	tc := tracing.Config{
		ExporterType: tracing.ExporterType(cfg.TracingExporter),
		OTLPEndpoint: cfg.OTLPEndpoint,
	}

	if tc.ExporterType != tracing.ExporterStdout {
		tracer, err := tracing.New(ctx, tc)
		return tracer, noClose, err
	}

	if err := config.EnsureDataDirPermissions(cfg.DataDir()); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(filepath.Join(cfg.DataDir(), tracesFileName), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open trace file: %w", err)
	}
	tc.Output = f

	tracer, err := tracing.New(ctx, tc)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return tracer, f.Close, nil
}

func showStartupError(title string, err error) {
	p := tea.NewProgram(ui.NewErrorModal(title, err.Error()), tea.WithAltScreen())
	if _, runErr := p.Run(); runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
