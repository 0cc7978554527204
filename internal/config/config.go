// Package config provides environment-variable-first configuration loading
// with optional YAML file fallback for the email API.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultSenderAddress = "mail@heiland.com"
	defaultMaxAttempts   = 3
)

// Config holds the complete application configuration.
type Config struct {
	Provider      string              `yaml:"provider"`
	Stage         string              `yaml:"stage"`
	Function      string              `yaml:"function"`
	Sender        SenderConfig        `yaml:"sender"`
	SES           SESConfig           `yaml:"ses"`
	Orchestration OrchestrationConfig `yaml:"orchestration"`
	HTTP          HTTPConfig          `yaml:"http"`
	Stdout        StdoutConfig        `yaml:"stdout"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// SenderConfig holds the default sender identity.
type SenderConfig struct {
	Label   string `yaml:"label"`
	Address string `yaml:"address"`
}

// SESConfig holds AWS SES configuration. Empty credentials fall back to the
// default AWS credential chain.
type SESConfig struct {
	Region           string `yaml:"region"`
	AccessKeyID      string `yaml:"access_key_id"`
	SecretAccessKey  string `yaml:"secret_access_key"`
	ConfigurationSet string `yaml:"configuration_set"`
	MaxAttempts      int    `yaml:"max_attempts"`
}

// OrchestrationConfig holds the state machine used for scheduled sends.
type OrchestrationConfig struct {
	StateMachineArn string `yaml:"state_machine_arn"`
}

// HTTPConfig holds the local HTTP server configuration.
type HTTPConfig struct {
	Listen string `yaml:"listen"`
	APIKey string `yaml:"api_key"`
}

// StdoutConfig holds the templates served by the stdout provider, which has
// no template store of its own. YAML only.
type StdoutConfig struct {
	Templates []TemplateConfig `yaml:"templates"`
}

// TemplateConfig is one handlebars template.
type TemplateConfig struct {
	Name    string `yaml:"name"`
	Subject string `yaml:"subject"`
	Html    string `yaml:"html"`
	Text    string `yaml:"text"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from environment variables with sensible defaults.
// Environment variables always take precedence.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	cfg.applyEnvVars()

	return cfg, nil
}

// loadDotEnv reads .env into the process environment outside production.
// Variables already set are not overwritten and a missing file is fine.
func loadDotEnv() error {
	if os.Getenv("GO_ENV") == "production" {
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// SESConfigured returns true if an SES region is set.
func (c *Config) SESConfigured() bool {
	return c.SES.Region != ""
}

// SchedulingEnabled returns true if a state machine ARN is set.
func (c *Config) SchedulingEnabled() bool {
	return c.Orchestration.StateMachineArn != ""
}

// AWSConfig builds the AWS SDK configuration shared by the SES and Step
// Functions clients.
func (c *Config) AWSConfig(ctx context.Context) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRetryMaxAttempts(c.SES.MaxAttempts),
	}
	if c.SES.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.SES.Region))
	}
	if c.SES.AccessKeyID != "" && c.SES.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.SES.AccessKeyID, c.SES.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.Stage = "dev"
	c.Function = "post"
	c.Sender.Address = defaultSenderAddress
	c.SES.MaxAttempts = defaultMaxAttempts
	c.HTTP.Listen = ":8080"
	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("PROVIDER"); v != "" {
		c.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("STAGE"); v != "" {
		c.Stage = v
	}
	if v := os.Getenv("EMAIL_API_FUNCTION"); v != "" {
		c.Function = strings.ToLower(v)
	}

	if v := os.Getenv("SENDER_EMAIL_LABEL"); v != "" {
		c.Sender.Label = v
	}
	if v := os.Getenv("SENDER_ADDRESS"); v != "" {
		c.Sender.Address = v
	}

	if v := os.Getenv("SES_REGION"); v != "" {
		c.SES.Region = v
	}
	if v := os.Getenv("SES_ACCESS_KEY_ID"); v != "" {
		c.SES.AccessKeyID = v
	}
	if v := os.Getenv("SES_SECRET_ACCESS_KEY"); v != "" {
		c.SES.SecretAccessKey = v
	}
	if v := os.Getenv("SES_CONFIGURATION_SET"); v != "" {
		c.SES.ConfigurationSet = v
	}
	if v := os.Getenv("SES_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.SES.MaxAttempts = n
		}
	}

	if v := os.Getenv("STATE_MACHINE_ARN"); v != "" {
		c.Orchestration.StateMachineArn = v
	}

	if v := os.Getenv("HTTP_LISTEN"); v != "" {
		c.HTTP.Listen = v
	}

	if v := os.Getenv("HTTP_API_KEY"); v != "" {
		c.HTTP.APIKey = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}
