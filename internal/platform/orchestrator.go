// Package platform orchestrates the full lifecycle of a service:
// creating its CI/CD pipeline, infrastructure and monitoring, and
// tearing everything down on delete.
package platform

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"platformd/internal/store"
)

// CICD provisions a CI/CD pipeline for a service and reports the
// repository URL and workflow details.
type CICD interface {
	Provision(ctx context.Context, name, team, serviceType string) (repoURL string, details map[string]any, err error)
}

// Infrastructure provisions and destroys the runtime infrastructure
// for a service.
type Infrastructure interface {
	Provision(ctx context.Context, name, serviceType, environment string) (endpoint string, outputs map[string]any, err error)
	Destroy(ctx context.Context, name, environment string) error
}

// Monitoring configures observability for a service.
type Monitoring interface {
	Provision(ctx context.Context, name, environment string) (dashboardURL, logsURL string, details map[string]any, err error)
}

// ProvisionRequest selects which components to provision. All
// components are enabled by default.
type ProvisionRequest struct {
	CICD           bool `json:"provision_cicd"`
	Infrastructure bool `json:"provision_infrastructure"`
	Monitoring     bool `json:"provision_monitoring"`
}

// Orchestrator coordinates provisioning across the component
// provisioners and records progress on the service record.
type Orchestrator struct {
	store          *store.Store
	cicd           CICD
	infrastructure Infrastructure
	monitoring     Monitoring
	logger         *slog.Logger
}

// NewOrchestrator creates an orchestrator over the given store and
// component provisioners.
func NewOrchestrator(st *store.Store, cicd CICD, infra Infrastructure, mon Monitoring, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:          st,
		cicd:           cicd,
		infrastructure: infra,
		monitoring:     mon,
		logger:         logger,
	}
}

// Provision provisions the requested components for a service. The
// enabled components run concurrently; each records its own sub-status
// as it finishes. If any component fails the service ends up in status
// "failed" and the first error is returned, but the other components
// still run to completion.
func (o *Orchestrator) Provision(ctx context.Context, id int64, req ProvisionRequest) (*store.Service, error) {
	svc, err := o.store.GetService(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := o.store.SetServiceStatus(ctx, id, store.StatusProvisioning); err != nil {
		return nil, err
	}

	o.logger.Info("provisioning service",
		"service", svc.Name,
		"cicd", req.CICD,
		"infrastructure", req.Infrastructure,
		"monitoring", req.Monitoring)

	var steps []func(context.Context) error
	if req.CICD {
		steps = append(steps, func(ctx context.Context) error {
			return o.provisionCICD(ctx, svc)
		})
	}
	if req.Infrastructure {
		steps = append(steps, func(ctx context.Context) error {
			return o.provisionInfrastructure(ctx, svc)
		})
	}
	if req.Monitoring {
		steps = append(steps, func(ctx context.Context) error {
			return o.provisionMonitoring(ctx, svc)
		})
	}

	var wg sync.WaitGroup
	errs := make([]error, len(steps))
	for i, step := range steps {
		wg.Add(1)
		go func(i int, step func(context.Context) error) {
			defer wg.Done()
			errs[i] = step(ctx)
		}(i, step)
	}
	wg.Wait()

	var firstErr error
	for _, err := range errs {
		if err != nil {
			firstErr = err
			break
		}
	}

	if firstErr != nil {
		if err := o.store.SetServiceStatus(ctx, id, store.StatusFailed); err != nil {
			o.logger.Error("failed to mark service failed",
				"service", svc.Name,
				"error", err)
		}
		return nil, firstErr
	}

	if err := o.store.SetServiceStatus(ctx, id, store.StatusRunning); err != nil {
		return nil, err
	}

	o.logger.Info("service provisioned", "service", svc.Name)
	return o.store.GetService(ctx, id)
}

func (o *Orchestrator) provisionCICD(ctx context.Context, svc *store.Service) error {
	repoURL, details, err := o.cicd.Provision(ctx, svc.Name, svc.Team, string(svc.ServiceType))
	if err != nil {
		if dberr := o.store.SetCICDResult(ctx, svc.ID, store.CICDFailed, "", nil); dberr != nil {
			o.logger.Error("failed to record cicd failure",
				"service", svc.Name,
				"error", dberr)
		}
		return fmt.Errorf("cicd provisioning for %s: %w", svc.Name, err)
	}
	return o.store.SetCICDResult(ctx, svc.ID, store.CICDConfigured, repoURL, details)
}

func (o *Orchestrator) provisionInfrastructure(ctx context.Context, svc *store.Service) error {
	endpoint, outputs, err := o.infrastructure.Provision(ctx, svc.Name, string(svc.ServiceType), string(svc.Environment))
	if err != nil {
		if dberr := o.store.SetInfrastructureResult(ctx, svc.ID, store.InfraFailed, "", nil); dberr != nil {
			o.logger.Error("failed to record infrastructure failure",
				"service", svc.Name,
				"error", dberr)
		}
		return fmt.Errorf("infrastructure provisioning for %s: %w", svc.Name, err)
	}
	return o.store.SetInfrastructureResult(ctx, svc.ID, store.InfraProvisioned, endpoint, outputs)
}

func (o *Orchestrator) provisionMonitoring(ctx context.Context, svc *store.Service) error {
	dashboardURL, logsURL, details, err := o.monitoring.Provision(ctx, svc.Name, string(svc.Environment))
	if err != nil {
		if dberr := o.store.SetMonitoringResult(ctx, svc.ID, store.MonitoringFailed, "", "", nil); dberr != nil {
			o.logger.Error("failed to record monitoring failure",
				"service", svc.Name,
				"error", dberr)
		}
		return fmt.Errorf("monitoring provisioning for %s: %w", svc.Name, err)
	}
	return o.store.SetMonitoringResult(ctx, svc.ID, store.MonitoringConfigured, dashboardURL, logsURL, details)
}

// Delete tears down a service's infrastructure and removes the record.
// Cleanup is best effort: failures are logged but the row is deleted
// regardless. Returns ErrNotFound if the service does not exist.
func (o *Orchestrator) Delete(ctx context.Context, id int64) error {
	svc, err := o.store.GetService(ctx, id)
	if err != nil {
		return err
	}

	if err := o.infrastructure.Destroy(ctx, svc.Name, string(svc.Environment)); err != nil {
		o.logger.Error("error during service cleanup",
			"service", svc.Name,
			"error", err)
	}

	return o.store.DeleteService(ctx, id)
}
