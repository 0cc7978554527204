// Package app wires configuration into the provider, orchestrator and
// mailer used by both binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/devonik/email-api/internal/config"
	"github.com/devonik/email-api/internal/email"
	"github.com/devonik/email-api/internal/mailer"
	"github.com/devonik/email-api/internal/provider"
	"github.com/devonik/email-api/internal/provider/ses"
	"github.com/devonik/email-api/internal/provider/stdout"
	"github.com/devonik/email-api/internal/scheduler"
)

// NewService wires the provider and the orchestrator into the mailer.
func NewService(ctx context.Context, cfg *config.Config) (*mailer.Service, error) {
	prov, err := SelectProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var orchestrator mailer.Orchestrator
	if cfg.SchedulingEnabled() {
		awsCfg, err := cfg.AWSConfig(ctx)
		if err != nil {
			return nil, err
		}
		orchestrator = scheduler.New(awsCfg, cfg.Orchestration.StateMachineArn)
	} else {
		slog.Warn("STATE_MACHINE_ARN is not set, scheduling is disabled")
	}

	return mailer.New(prov, orchestrator, mailer.Config{
		SenderLabel:   cfg.Sender.Label,
		SenderAddress: cfg.Sender.Address,
	}), nil
}

// SelectProvider chooses the email delivery backend based on configuration.
// If PROVIDER is set, it takes precedence. Otherwise SES is used when a
// region is configured, else stdout.
func SelectProvider(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	switch cfg.Provider {
	case "ses":
		if !cfg.SESConfigured() {
			return nil, fmt.Errorf("SES provider selected but SES_REGION is required")
		}
		return newSESProvider(ctx, cfg)

	case "stdout":
		slog.Info("using stdout provider")
		return NewStdoutProvider(cfg), nil

	case "":
		if cfg.SESConfigured() {
			slog.Info("using AWS SES provider (auto-detected)", "region", cfg.SES.Region)
			return newSESProvider(ctx, cfg)
		}
		slog.Info("no provider configured, using stdout provider")
		return NewStdoutProvider(cfg), nil

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func newSESProvider(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	awsCfg, err := cfg.AWSConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create SES provider: %w", err)
	}
	slog.Info("using AWS SES provider",
		"region", cfg.SES.Region,
		"configuration_set", cfg.SES.ConfigurationSet,
		"max_attempts", cfg.SES.MaxAttempts,
	)
	return ses.New(awsCfg, ses.SESProviderConfig{
		ConfigurationSet: cfg.SES.ConfigurationSet,
	}), nil
}

// NewStdoutProvider creates the dry-run provider with the configured templates.
func NewStdoutProvider(cfg *config.Config) *stdout.Provider {
	p := stdout.New()
	for _, tpl := range cfg.Stdout.Templates {
		p.AddTemplate(&email.Template{
			Name:    tpl.Name,
			Subject: tpl.Subject,
			Html:    tpl.Html,
			Text:    tpl.Text,
		})
	}
	return p
}
