package kubernetes

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"platformd/pkg/cmdutil"
)

const commandTimeout = 5 * time.Minute

// Runner applies and deletes Kubernetes resources with kubectl.
type Runner struct {
	namespace string
	registry  string
	domain    string
	logger    *slog.Logger
}

// NewRunner creates a kubectl runner for the given namespace.
func NewRunner(namespace, registry, domain string, logger *slog.Logger) *Runner {
	return &Runner{
		namespace: namespace,
		registry:  registry,
		domain:    domain,
		logger:    logger,
	}
}

// Apply generates the manifests for a service and applies them to the
// cluster via a temporary file.
func (r *Runner) Apply(ctx context.Context, serviceName, serviceType, environment string) error {
	manifests, err := GenerateManifests(serviceName, serviceType, environment, r.namespace, r.registry, r.domain)
	if err != nil {
		return err
	}
	rendered, err := RenderManifests(manifests)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp("", "platformd-manifests-*.yaml")
	if err != nil {
		return fmt.Errorf("creating manifest file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(rendered); err != nil {
		tmp.Close()
		return fmt.Errorf("writing manifest file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing manifest file: %w", err)
	}

	result, err := r.kubectl(ctx, "apply", "-f", tmp.Name())
	if err != nil {
		return fmt.Errorf("kubectl apply for %s: %w: %s", serviceName, err, output(result))
	}

	r.logger.Info("kubernetes resources applied",
		"service", serviceName,
		"environment", environment,
		"namespace", r.namespace)
	return nil
}

// Delete removes the deployment, service and ingress for a service.
// Missing resources are not an error.
func (r *Runner) Delete(ctx context.Context, serviceName, environment string) error {
	name := fmt.Sprintf("%s-%s", serviceName, environment)

	var firstErr error
	for _, kind := range []string{"deployment", "service", "ingress"} {
		result, err := r.kubectl(ctx, "delete", kind, name,
			"-n", r.namespace, "--ignore-not-found=true")
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("kubectl delete %s %s: %w: %s", kind, name, err, output(result))
		}
	}

	if firstErr == nil {
		r.logger.Info("kubernetes resources deleted",
			"service", serviceName,
			"environment", environment)
	}
	return firstErr
}

func (r *Runner) kubectl(ctx context.Context, args ...string) (*cmdutil.Result, error) {
	cmd := append([]string{"kubectl"}, args...)

	r.logger.Debug("running kubectl",
		"command", cmdutil.FormatCommand(cmd))

	return cmdutil.RunWithTimeout(ctx, "", commandTimeout, os.Environ(), cmd)
}

func output(result *cmdutil.Result) string {
	if result == nil {
		return ""
	}
	return string(result.Output)
}
