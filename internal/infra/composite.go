// Package infra combines the terraform and kubernetes runners into a
// single infrastructure provisioner: terraform creates the cloud
// resources, kubectl deploys the workload on top of them.
package infra

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"platformd/internal/kubernetes"
	"platformd/internal/terraform"
)

// Provisioner provisions infrastructure with terraform and deploys the
// service to Kubernetes.
type Provisioner struct {
	terraform  *terraform.Runner
	kubernetes *kubernetes.Runner
	domain     string
	logger     *slog.Logger
}

// NewProvisioner creates a composite terraform+kubernetes provisioner.
// domain is the base DNS domain for service endpoints.
func NewProvisioner(tf *terraform.Runner, k8s *kubernetes.Runner, domain string, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		terraform:  tf,
		kubernetes: k8s,
		domain:     domain,
		logger:     logger,
	}
}

// Provision applies the terraform configuration, then the Kubernetes
// manifests, and returns the service endpoint and terraform outputs.
func (p *Provisioner) Provision(ctx context.Context, serviceName, serviceType, environment string) (string, map[string]any, error) {
	tfOutputs, err := p.terraform.Apply(ctx, serviceName, serviceType, environment)
	if err != nil {
		return "", nil, fmt.Errorf("terraform provisioning failed: %w", err)
	}

	if err := p.kubernetes.Apply(ctx, serviceName, serviceType, environment); err != nil {
		return "", nil, fmt.Errorf("kubernetes deployment failed: %w", err)
	}

	endpoint := fmt.Sprintf("http://%s.%s.%s", serviceName, environment, p.domain)
	outputs := map[string]any{
		"terraform_outputs":     tfOutputs,
		"kubernetes_deployment": fmt.Sprintf("%s-%s", serviceName, environment),
	}
	return endpoint, outputs, nil
}

// Destroy tears down both layers concurrently. Each layer's failure is
// independent of the other; the first error is returned.
func (p *Provisioner) Destroy(ctx context.Context, serviceName, environment string) error {
	var wg sync.WaitGroup
	errs := make([]error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = p.kubernetes.Delete(ctx, serviceName, environment)
	}()
	go func() {
		defer wg.Done()
		errs[1] = p.terraform.Destroy(ctx, serviceName, environment)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	p.logger.Info("infrastructure destroyed",
		"service", serviceName,
		"environment", environment)
	return nil
}
