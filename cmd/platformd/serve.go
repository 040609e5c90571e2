package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"platformd/internal/cicd"
	"platformd/internal/cloud"
	"platformd/internal/config"
	"platformd/internal/infra"
	"platformd/internal/kubernetes"
	"platformd/internal/monitoring"
	"platformd/internal/operation"
	"platformd/internal/platform"
	"platformd/internal/server"
	"platformd/internal/store"
	"platformd/internal/terraform"
	"platformd/pkg/fileutil"

	"github.com/spf13/cobra"
)

var (
	configFile string
	logFile    string
	dbPath     string
	host       string
	port       int
	testMode   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the platform API server",
	Long: `Start the HTTP server that exposes the /api/v1 platform surface.

The server manages service records in SQLite and drives GitHub, Terraform,
kubectl and AWS when services are provisioned.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&configFile, "config", "c", getEnvOrDefault("PLATFORMD_CONFIG_FILE", ""), "Path to platformd.yaml configuration file")
	serveCmd.Flags().StringVar(&logFile, "log", getEnvOrDefault("PLATFORMD_LOG_FILE", "./platformd.log"), "Path to log file")
	serveCmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database (overrides config)")
	serveCmd.Flags().StringVar(&host, "host", "", "Host to bind to (overrides config)")
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&testMode, "test-mode", os.Getenv("PLATFORMD_TEST_MODE") == "1", "Enable test mode (disable rate limiting)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// An explicit --config is required to exist; otherwise search
	// default locations and fall back to defaults plus environment.
	if configFile == "" {
		configFile = fileutil.SearchPathsOptional(fileutil.DefaultConfigPaths("platformd.yaml"))
	}

	logger, logFileHandle, err := setupLogging(logFile)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logFileHandle.Close()

	logger.Info("Starting platformd")

	cfg, err := config.Load(configFile)
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if configFile != "" {
		logger.Info("Configuration loaded", "config", configFile)
	}

	// Flag overrides win over file and environment.
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	logger.Info("Opening database", "db", cfg.Database.Path)
	st, err := store.New(cfg.Database.Path)
	if err != nil {
		logger.Error("Failed to open database", "error", err)
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	var cicdProvisioner platform.CICD = cicd.Disabled{}
	if cfg.GitHub.Token != "" {
		ghClient, err := cicd.NewClient(cfg.GitHub.Token, cfg.GitHub.Org)
		if err != nil {
			logger.Error("Failed to create GitHub client", "error", err)
			return fmt.Errorf("failed to create GitHub client: %w", err)
		}
		cicdProvisioner = cicd.NewProvisioner(ghClient, cfg.Kubernetes.Registry, logger)
	} else {
		logger.Warn("GitHub token not configured, CI/CD provisioning disabled")
	}

	infraProvisioner, err := buildInfrastructure(cmd.Context(), cfg, logger)
	if err != nil {
		logger.Error("Failed to create infrastructure provisioner", "error", err)
		return fmt.Errorf("failed to create infrastructure provisioner: %w", err)
	}

	monProvisioner := monitoring.NewProvisioner(cfg.Monitoring.GrafanaURL, cfg.Monitoring.PrometheusURL, logger)

	orch := platform.NewOrchestrator(st, cicdProvisioner, infraProvisioner, monProvisioner, logger)
	srv := server.NewServer(st, orch, operation.NewTracker(), infraProvisioner, logger, testMode)

	addr := cfg.ListenAddr()
	logger.Info("Starting HTTP server", "addr", addr, "provider", cfg.Infrastructure.Provider)
	if err := srv.Start(addr); err != nil {
		logger.Error("Server failed", "error", err)
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// buildInfrastructure selects the infrastructure provisioner from the
// configured provider.
func buildInfrastructure(ctx context.Context, cfg *config.Config, logger *slog.Logger) (platform.Infrastructure, error) {
	switch cfg.Infrastructure.Provider {
	case config.ProviderAWS:
		return cloud.NewProvisioner(ctx, cfg.AWS.Region, cfg.Kubernetes.Registry, logger)
	default:
		tf := terraform.NewRunner(cfg.Terraform.WorkspaceDir, cfg.AWS.Region, cfg.GitHub.Org, cfg.Domain, cfg.TerraformExtraArgs(), logger)
		k8s := kubernetes.NewRunner(cfg.Kubernetes.Namespace, cfg.Kubernetes.Registry, cfg.Domain, logger)
		return infra.NewProvisioner(tf, k8s, cfg.Domain, logger), nil
	}
}

// setupLogging configures slog for file logging
// Returns both the logger and the file handle (caller must close the file)
func setupLogging(logPath string) (*slog.Logger, *os.File, error) {
	// Create log directory if needed
	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// Open log file with secure permissions
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	// Create multi-writer to log to both file and console
	multiWriter := io.MultiWriter(os.Stdout, file)

	// Create JSON handler for structured logging
	handler := slog.NewJSONHandler(multiWriter, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	logger := slog.New(handler)

	return logger, file, nil
}

// Helper functions for environment variables
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
