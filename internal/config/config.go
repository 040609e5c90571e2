// Package config loads the platformd configuration from a YAML file
// with PLATFORMD_* environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"platformd/pkg/cmdutil"
)

const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 8000
	DefaultDatabasePath    = "platform.db"
	DefaultGitHubOrg       = "platformdavid-templates"
	DefaultWorkspaceDir    = "/var/lib/platformd/terraform"
	DefaultNamespace       = "default"
	DefaultRegistry        = "ghcr.io"
	DefaultRegion          = "us-east-1"
	DefaultProvider        = ProviderTerraform
	DefaultPlatformDomain  = "platformdavid.internal"
	DefaultGrafanaURL      = "https://grafana.platformdavid.internal"
	DefaultPrometheusURL   = "https://prometheus.platformdavid.internal"
	DefaultOperationMaxAge = 24
)

// Supported infrastructure providers.
const (
	ProviderTerraform = "terraform"
	ProviderAWS       = "aws"
)

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig holds the SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// GitHubConfig holds the GitHub API settings for repository and
// workflow provisioning.
type GitHubConfig struct {
	Token string `yaml:"token"`
	Org   string `yaml:"org"`
}

// TerraformConfig holds the terraform runner settings.
type TerraformConfig struct {
	WorkspaceDir string `yaml:"workspace_dir"`
	ExtraArgs    string `yaml:"extra_args"`
}

// KubernetesConfig holds the kubectl runner settings.
type KubernetesConfig struct {
	Namespace string `yaml:"namespace"`
	Registry  string `yaml:"registry"`
}

// AWSConfig holds settings for the direct AWS provisioner.
type AWSConfig struct {
	Region string `yaml:"region"`
}

// InfrastructureConfig selects how infrastructure is provisioned.
// Provider is "terraform" or "aws".
type InfrastructureConfig struct {
	Provider string `yaml:"provider"`
}

// MonitoringConfig holds the observability endpoint settings used to
// derive dashboard and log URLs for provisioned services.
type MonitoringConfig struct {
	GrafanaURL    string `yaml:"grafana_url"`
	PrometheusURL string `yaml:"prometheus_url"`
}

// Config is the top-level platformd configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	GitHub         GitHubConfig         `yaml:"github"`
	Terraform      TerraformConfig      `yaml:"terraform"`
	Kubernetes     KubernetesConfig     `yaml:"kubernetes"`
	AWS            AWSConfig            `yaml:"aws"`
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	Monitoring     MonitoringConfig     `yaml:"monitoring"`

	// Domain is the base DNS domain under which service endpoints
	// are published, e.g. "platformdavid.io".
	Domain string `yaml:"domain"`

	// OperationMaxAgeHours is the default retention for completed
	// provisioning operations.
	OperationMaxAgeHours int `yaml:"operation_max_age_hours"`
}

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		Server:         ServerConfig{Host: DefaultHost, Port: DefaultPort},
		Database:       DatabaseConfig{Path: DefaultDatabasePath},
		GitHub:         GitHubConfig{Org: DefaultGitHubOrg},
		Terraform:      TerraformConfig{WorkspaceDir: DefaultWorkspaceDir},
		Kubernetes:     KubernetesConfig{Namespace: DefaultNamespace, Registry: DefaultRegistry},
		AWS:            AWSConfig{Region: DefaultRegion},
		Infrastructure: InfrastructureConfig{Provider: DefaultProvider},
		Monitoring: MonitoringConfig{
			GrafanaURL:    DefaultGrafanaURL,
			PrometheusURL: DefaultPrometheusURL,
		},
		Domain:               DefaultPlatformDomain,
		OperationMaxAgeHours: DefaultOperationMaxAge,
	}
}

// Load reads the configuration from a YAML file, applies environment
// variable overrides and defaults, and validates the result. An empty
// path skips the file and uses defaults plus environment only.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides config fields from PLATFORMD_* environment
// variables. Environment wins over the file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("PLATFORMD_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PLATFORMD_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PLATFORMD_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("PLATFORMD_GITHUB_TOKEN"); v != "" {
		cfg.GitHub.Token = v
	}
	if v := os.Getenv("PLATFORMD_GITHUB_ORG"); v != "" {
		cfg.GitHub.Org = v
	}
	if v := os.Getenv("PLATFORMD_TERRAFORM_DIR"); v != "" {
		cfg.Terraform.WorkspaceDir = v
	}
	if v := os.Getenv("PLATFORMD_K8S_NAMESPACE"); v != "" {
		cfg.Kubernetes.Namespace = v
	}
	if v := os.Getenv("PLATFORMD_AWS_REGION"); v != "" {
		cfg.AWS.Region = v
	}
	if v := os.Getenv("PLATFORMD_INFRA_PROVIDER"); v != "" {
		cfg.Infrastructure.Provider = v
	}
	if v := os.Getenv("PLATFORMD_DOMAIN"); v != "" {
		cfg.Domain = v
	}
}

// applyDefaults fills in zero values left by an explicit empty YAML field.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Server.Host == "" {
		cfg.Server.Host = def.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = def.Database.Path
	}
	if cfg.GitHub.Org == "" {
		cfg.GitHub.Org = def.GitHub.Org
	}
	if cfg.Terraform.WorkspaceDir == "" {
		cfg.Terraform.WorkspaceDir = def.Terraform.WorkspaceDir
	}
	if cfg.Kubernetes.Namespace == "" {
		cfg.Kubernetes.Namespace = def.Kubernetes.Namespace
	}
	if cfg.Kubernetes.Registry == "" {
		cfg.Kubernetes.Registry = def.Kubernetes.Registry
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = def.AWS.Region
	}
	if cfg.Infrastructure.Provider == "" {
		cfg.Infrastructure.Provider = def.Infrastructure.Provider
	}
	if cfg.Monitoring.GrafanaURL == "" {
		cfg.Monitoring.GrafanaURL = def.Monitoring.GrafanaURL
	}
	if cfg.Monitoring.PrometheusURL == "" {
		cfg.Monitoring.PrometheusURL = def.Monitoring.PrometheusURL
	}
	if cfg.Domain == "" {
		cfg.Domain = def.Domain
	}
	if cfg.OperationMaxAgeHours == 0 {
		cfg.OperationMaxAgeHours = def.OperationMaxAgeHours
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errors []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, fmt.Sprintf("  - server.port must be between 1 and 65535, got %d", c.Server.Port))
	}

	switch c.Infrastructure.Provider {
	case ProviderTerraform, ProviderAWS:
	default:
		errors = append(errors, fmt.Sprintf("  - infrastructure.provider must be 'terraform' or 'aws', got '%s'", c.Infrastructure.Provider))
	}

	if c.Terraform.ExtraArgs != "" {
		if _, err := cmdutil.ParseCommandString(c.Terraform.ExtraArgs); err != nil {
			errors = append(errors, fmt.Sprintf("  - terraform.extra_args is not parseable: %v", err))
		}
	}

	if c.OperationMaxAgeHours < 0 {
		errors = append(errors, fmt.Sprintf("  - operation_max_age_hours must be positive, got %d", c.OperationMaxAgeHours))
	}

	if len(errors) > 0 {
		return fmt.Errorf("invalid configuration:\n%s", strings.Join(errors, "\n"))
	}
	return nil
}

// TerraformExtraArgs returns the parsed extra terraform arguments.
// Validate has already checked the string parses.
func (c *Config) TerraformExtraArgs() []string {
	if c.Terraform.ExtraArgs == "" {
		return nil
	}
	args, _ := cmdutil.ParseCommandString(c.Terraform.ExtraArgs)
	return args
}

// ListenAddr returns the host:port address for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
