package app

import (
	"context"
	"testing"

	"github.com/devonik/email-api/internal/config"
)

func TestSelectProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      config.Config
		wantName string
		wantErr  bool
	}{
		{name: "explicit stdout", cfg: config.Config{Provider: "stdout"}, wantName: "stdout"},
		{name: "auto stdout", cfg: config.Config{}, wantName: "stdout"},
		{name: "explicit ses", cfg: config.Config{Provider: "ses", SES: config.SESConfig{Region: "eu-central-1"}}, wantName: "ses"},
		{name: "auto ses", cfg: config.Config{SES: config.SESConfig{Region: "eu-central-1"}}, wantName: "ses"},
		{name: "ses without region", cfg: config.Config{Provider: "ses"}, wantErr: true},
		{name: "unknown", cfg: config.Config{Provider: "graph"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := SelectProvider(context.Background(), &tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name() != tt.wantName {
				t.Errorf("provider: got %q, want %q", p.Name(), tt.wantName)
			}
		})
	}
}

func TestNewStdoutProvider_Templates(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Stdout: config.StdoutConfig{Templates: []config.TemplateConfig{
		{Name: "reminder", Subject: "Hallo {{name}}", Html: "<p>x</p>"},
	}}}

	p := NewStdoutProvider(cfg)
	tpl, err := p.GetTemplate(context.Background(), "reminder")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tpl.Subject != "Hallo {{name}}" {
		t.Errorf("Subject: got %q", tpl.Subject)
	}
}

func TestNewService_SchedulingDisabled(t *testing.T) {
	t.Parallel()

	svc, err := NewService(context.Background(), &config.Config{Provider: "stdout"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc == nil {
		t.Fatal("expected service")
	}
}
