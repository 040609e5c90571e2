package platform

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"platformd/internal/store"
)

type fakeCICD struct {
	calls atomic.Int32
	err   error
}

func (f *fakeCICD) Provision(ctx context.Context, name, team, serviceType string) (string, map[string]any, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", nil, f.err
	}
	return "https://github.com/platformdavid/" + name,
		map[string]any{"file": ".github/workflows/ci-cd.yml", "status": "created"},
		nil
}

type fakeInfra struct {
	provisionCalls atomic.Int32
	destroyCalls   atomic.Int32
	provisionErr   error
	destroyErr     error
}

func (f *fakeInfra) Provision(ctx context.Context, name, serviceType, environment string) (string, map[string]any, error) {
	f.provisionCalls.Add(1)
	if f.provisionErr != nil {
		return "", nil, f.provisionErr
	}
	return "http://" + name + "." + environment + ".platformdavid.io",
		map[string]any{"terraform_outputs": map[string]any{"cost_optimization": "Active"}},
		nil
}

func (f *fakeInfra) Destroy(ctx context.Context, name, environment string) error {
	f.destroyCalls.Add(1)
	return f.destroyErr
}

type fakeMonitoring struct {
	calls atomic.Int32
	err   error
}

func (f *fakeMonitoring) Provision(ctx context.Context, name, environment string) (string, string, map[string]any, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", "", nil, f.err
	}
	return "http://grafana/d/" + name,
		"http://prometheus/graph",
		map[string]any{"log_stream": "service-" + name + "-" + environment},
		nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "platform.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func createService(t *testing.T, st *store.Store) *store.Service {
	t.Helper()
	svc, err := st.CreateService(context.Background(), &store.Service{
		Name:        "orders-api",
		Team:        "payments",
		ServiceType: store.ServiceTypeAPI,
		Environment: store.EnvStaging,
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestProvisionAll(t *testing.T) {
	st := newTestStore(t)
	svc := createService(t, st)

	cicd := &fakeCICD{}
	infra := &fakeInfra{}
	mon := &fakeMonitoring{}
	o := NewOrchestrator(st, cicd, infra, mon, testLogger())

	got, err := o.Provision(context.Background(), svc.ID, ProvisionRequest{
		CICD:           true,
		Infrastructure: true,
		Monitoring:     true,
	})
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	if got.Status != store.StatusRunning {
		t.Errorf("status = %s, want running", got.Status)
	}
	if got.CICDStatus != store.CICDConfigured {
		t.Errorf("cicd_status = %s", got.CICDStatus)
	}
	if got.InfrastructureStatus != store.InfraProvisioned {
		t.Errorf("infrastructure_status = %s", got.InfrastructureStatus)
	}
	if got.MonitoringStatus != store.MonitoringConfigured {
		t.Errorf("monitoring_status = %s", got.MonitoringStatus)
	}

	if got.RepositoryURL == nil || *got.RepositoryURL != "https://github.com/platformdavid/orders-api" {
		t.Errorf("repository_url = %v", got.RepositoryURL)
	}
	if got.DeploymentURL == nil || *got.DeploymentURL != "http://orders-api.staging.platformdavid.io" {
		t.Errorf("deployment_url = %v", got.DeploymentURL)
	}
	if got.MonitoringURL == nil {
		t.Error("monitoring_url not set")
	}

	if _, ok := got.Configuration["github_actions_workflow"]; !ok {
		t.Error("workflow details not merged into configuration")
	}
	if _, ok := got.InfrastructureConfig["terraform_outputs"]; !ok {
		t.Error("terraform outputs not merged into infrastructure_config")
	}
	if _, ok := got.MonitoringConfig["log_stream"]; !ok {
		t.Error("monitoring details not merged into monitoring_config")
	}
}

func TestProvisionNothing(t *testing.T) {
	st := newTestStore(t)
	svc := createService(t, st)

	cicd := &fakeCICD{}
	infra := &fakeInfra{}
	mon := &fakeMonitoring{}
	o := NewOrchestrator(st, cicd, infra, mon, testLogger())

	got, err := o.Provision(context.Background(), svc.ID, ProvisionRequest{})
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	if got.Status != store.StatusRunning {
		t.Errorf("status = %s, want running", got.Status)
	}
	if got.CICDStatus != store.CICDNotConfigured {
		t.Errorf("cicd_status = %s, should be untouched", got.CICDStatus)
	}
	if cicd.calls.Load() != 0 || infra.provisionCalls.Load() != 0 || mon.calls.Load() != 0 {
		t.Error("no provisioners should be called when nothing is requested")
	}
}

func TestProvisionPartialFailure(t *testing.T) {
	st := newTestStore(t)
	svc := createService(t, st)

	cicd := &fakeCICD{err: errors.New("github unreachable")}
	infra := &fakeInfra{}
	mon := &fakeMonitoring{}
	o := NewOrchestrator(st, cicd, infra, mon, testLogger())

	_, err := o.Provision(context.Background(), svc.ID, ProvisionRequest{
		CICD:           true,
		Infrastructure: true,
		Monitoring:     true,
	})
	if err == nil {
		t.Fatal("expected provisioning error")
	}

	got, err := st.GetService(context.Background(), svc.ID)
	if err != nil {
		t.Fatalf("GetService failed: %v", err)
	}

	if got.Status != store.StatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.CICDStatus != store.CICDFailed {
		t.Errorf("cicd_status = %s, want failed", got.CICDStatus)
	}
	// The other components still ran and recorded success.
	if got.InfrastructureStatus != store.InfraProvisioned {
		t.Errorf("infrastructure_status = %s, want provisioned", got.InfrastructureStatus)
	}
	if got.MonitoringStatus != store.MonitoringConfigured {
		t.Errorf("monitoring_status = %s, want configured", got.MonitoringStatus)
	}
}

func TestProvisionUnknownService(t *testing.T) {
	st := newTestStore(t)
	o := NewOrchestrator(st, &fakeCICD{}, &fakeInfra{}, &fakeMonitoring{}, testLogger())

	_, err := o.Provision(context.Background(), 9999, ProvisionRequest{CICD: true})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	st := newTestStore(t)
	svc := createService(t, st)

	infra := &fakeInfra{}
	o := NewOrchestrator(st, &fakeCICD{}, infra, &fakeMonitoring{}, testLogger())

	if err := o.Delete(context.Background(), svc.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if infra.destroyCalls.Load() != 1 {
		t.Error("infrastructure destroy should be called once")
	}
	if _, err := st.GetService(context.Background(), svc.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("service should be deleted, got %v", err)
	}
}

func TestDeleteCleanupFailureStillRemovesRow(t *testing.T) {
	st := newTestStore(t)
	svc := createService(t, st)

	infra := &fakeInfra{destroyErr: errors.New("terraform destroy failed")}
	o := NewOrchestrator(st, &fakeCICD{}, infra, &fakeMonitoring{}, testLogger())

	if err := o.Delete(context.Background(), svc.ID); err != nil {
		t.Fatalf("Delete should succeed despite cleanup failure, got %v", err)
	}
	if _, err := st.GetService(context.Background(), svc.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("service row should be removed, got %v", err)
	}
}

func TestDeleteUnknownService(t *testing.T) {
	st := newTestStore(t)
	infra := &fakeInfra{}
	o := NewOrchestrator(st, &fakeCICD{}, infra, &fakeMonitoring{}, testLogger())

	if err := o.Delete(context.Background(), 9999); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if infra.destroyCalls.Load() != 0 {
		t.Error("destroy should not run for unknown service")
	}
}
