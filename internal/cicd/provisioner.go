package cicd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNotConfigured is returned by Disabled when a CI/CD step is
// requested without a GitHub token.
var ErrNotConfigured = errors.New("github token not configured, cicd provisioning is disabled")

// Disabled is a stand-in provisioner used when no GitHub token is
// configured. It fails any provisioning request instead of the whole
// process failing at startup.
type Disabled struct{}

func (Disabled) Provision(ctx context.Context, name, team, serviceType string) (string, map[string]any, error) {
	return "", nil, ErrNotConfigured
}

// Provisioner sets up the full CI/CD pipeline for a service: the
// repository, its starter files and the workflow file.
type Provisioner struct {
	client   *Client
	registry string
	logger   *slog.Logger
}

// NewProvisioner creates a CI/CD provisioner. registry is the
// container registry host the generated manifests pull from.
func NewProvisioner(client *Client, registry string, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		client:   client,
		registry: registry,
		logger:   logger,
	}
}

// Provision creates the repository and commits the workflow and
// starter files. It returns the repository URL and a description of
// the configured workflow.
func (p *Provisioner) Provision(ctx context.Context, name, team, serviceType string) (string, map[string]any, error) {
	workflow, err := WorkflowConfig(name, team, serviceType, p.client.Org())
	if err != nil {
		return "", nil, err
	}

	if err := p.client.EnsureRepository(ctx, name, serviceType); err != nil {
		return "", nil, err
	}

	p.logger.Info("repository ready",
		"service", name,
		"org", p.client.Org())

	for path, content := range StarterFiles(name, serviceType, p.registry, p.client.Org()) {
		if content == "" {
			continue
		}
		msg := fmt.Sprintf("Add %s", path)
		if err := p.client.CommitFile(ctx, name, path, msg, []byte(content)); err != nil {
			return "", nil, err
		}
	}

	if err := p.client.CommitFile(ctx, name, workflowPath, "Add CI/CD workflow", []byte(workflow)); err != nil {
		return "", nil, err
	}

	repoURL := fmt.Sprintf("https://github.com/%s/%s", p.client.Org(), name)
	details := map[string]any{
		"file":   workflowPath,
		"status": "created",
		"url":    repoURL + "/actions",
	}

	p.logger.Info("cicd pipeline configured",
		"service", name,
		"repository", repoURL)

	return repoURL, details, nil
}
