package terraform

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"platformd/internal/security"
	"platformd/pkg/cmdutil"
	"platformd/pkg/fileutil"
)

const commandTimeout = 15 * time.Minute

// Runner writes per-service Terraform workspaces and runs the
// terraform CLI against them.
type Runner struct {
	workspaceDir string
	region       string
	org          string
	domain       string
	extraArgs    []string
	logger       *slog.Logger
}

// NewRunner creates a terraform runner rooted at workspaceDir. Each
// service gets its own subdirectory and state.
func NewRunner(workspaceDir, region, org, domain string, extraArgs []string, logger *slog.Logger) *Runner {
	return &Runner{
		workspaceDir: workspaceDir,
		region:       region,
		org:          org,
		domain:       domain,
		extraArgs:    extraArgs,
		logger:       logger,
	}
}

// WriteWorkspace generates and writes the Terraform files for a
// service, returning the workspace directory.
func (r *Runner) WriteWorkspace(serviceName, serviceType, environment string) (string, error) {
	config, err := GenerateConfig(serviceName, serviceType, environment, r.region, r.org)
	if err != nil {
		return "", err
	}
	rendered, err := RenderConfig(config)
	if err != nil {
		return "", err
	}

	dir, err := r.serviceDir(serviceName)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating workspace for %s: %w", serviceName, err)
	}

	files := map[string][]byte{
		"main.tf.json": rendered,
		"variables.tf": []byte(VariablesFile(serviceName)),
		"outputs.tf":   []byte(OutputsFile(serviceName, serviceType, r.domain)),
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), content, 0o644); err != nil {
			return "", fmt.Errorf("writing %s for %s: %w", name, serviceName, err)
		}
	}

	return dir, nil
}

// Apply writes the workspace, runs terraform init and apply, and
// returns the terraform outputs plus the estimated cost breakdown
// for the service type.
func (r *Runner) Apply(ctx context.Context, serviceName, serviceType, environment string) (map[string]any, error) {
	dir, err := r.WriteWorkspace(serviceName, serviceType, environment)
	if err != nil {
		return nil, err
	}

	if _, err := r.run(ctx, dir, "init"); err != nil {
		return nil, fmt.Errorf("terraform init for %s: %w", serviceName, err)
	}

	if _, err := r.run(ctx, dir, "apply", "-auto-approve"); err != nil {
		return nil, fmt.Errorf("terraform apply for %s: %w", serviceName, err)
	}

	outputs, err := r.Outputs(ctx, serviceName)
	if err != nil {
		// Apply succeeded; outputs are informational.
		r.logger.Warn("failed to read terraform outputs",
			"service", serviceName,
			"error", err)
		outputs = map[string]any{}
	}
	outputs["cost_breakdown"] = CostBreakdown(serviceType)

	r.logger.Info("terraform apply complete",
		"service", serviceName,
		"environment", environment)

	return outputs, nil
}

// Destroy runs terraform destroy for the service workspace. A missing
// workspace means there is nothing to destroy.
func (r *Runner) Destroy(ctx context.Context, serviceName, environment string) error {
	dir, err := r.serviceDir(serviceName)
	if err != nil {
		return err
	}
	if !fileutil.DirExists(dir) {
		return nil
	}

	if _, err := r.run(ctx, dir, "destroy", "-auto-approve"); err != nil {
		return fmt.Errorf("terraform destroy for %s: %w", serviceName, err)
	}

	r.logger.Info("terraform destroy complete",
		"service", serviceName,
		"environment", environment)
	return nil
}

// Outputs reads the workspace outputs with `terraform output -json`.
func (r *Runner) Outputs(ctx context.Context, serviceName string) (map[string]any, error) {
	dir, err := r.serviceDir(serviceName)
	if err != nil {
		return nil, err
	}

	result, err := r.run(ctx, dir, "output", "-json")
	if err != nil {
		return nil, err
	}

	// terraform output -json wraps each value in {value, type, sensitive}.
	var raw map[string]struct {
		Value any `json:"value"`
	}
	if err := json.Unmarshal(result.Output, &raw); err != nil {
		return nil, fmt.Errorf("parsing terraform outputs: %w", err)
	}

	outputs := make(map[string]any, len(raw))
	for name, entry := range raw {
		outputs[name] = entry.Value
	}
	return outputs, nil
}

// serviceDir resolves the workspace directory for a service and
// rejects names that would escape the workspace root.
func (r *Runner) serviceDir(serviceName string) (string, error) {
	return security.SanitizeWorkspacePath(r.workspaceDir, filepath.Join(r.workspaceDir, serviceName))
}

func (r *Runner) run(ctx context.Context, dir string, args ...string) (*cmdutil.Result, error) {
	cmd := append([]string{"terraform"}, args...)
	cmd = append(cmd, r.extraArgs...)

	r.logger.Debug("running terraform",
		"dir", dir,
		"command", cmdutil.FormatCommand(cmd))

	result, err := cmdutil.RunWithTimeout(ctx, dir, commandTimeout, os.Environ(), cmd)
	if err != nil {
		if result != nil {
			return result, fmt.Errorf("%w: %s", err, result.Output)
		}
		return nil, err
	}
	return result, nil
}
