package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"platformd/internal/operation"
	"platformd/internal/platform"
	"platformd/internal/server"
	"platformd/internal/store"
)

// stubCICD simulates repository and workflow creation.
type stubCICD struct {
	err error
}

func (c *stubCICD) Provision(ctx context.Context, name, team, serviceType string) (string, map[string]any, error) {
	if c.err != nil {
		return "", nil, c.err
	}
	return "https://github.com/acme/" + name, map[string]any{
		"file":   ".github/workflows/ci-cd.yml",
		"status": "created",
	}, nil
}

// stubInfra simulates terraform plus kubectl provisioning.
type stubInfra struct {
	err        error
	destroyErr error
	destroyed  []string
}

func (i *stubInfra) Provision(ctx context.Context, name, serviceType, environment string) (string, map[string]any, error) {
	if i.err != nil {
		return "", nil, i.err
	}
	return fmt.Sprintf("http://%s.%s.acme.internal", name, environment), map[string]any{
		"kubernetes_deployment": fmt.Sprintf("%s-%s", name, environment),
	}, nil
}

func (i *stubInfra) Destroy(ctx context.Context, name, environment string) error {
	i.destroyed = append(i.destroyed, name)
	return i.destroyErr
}

// stubMonitoring simulates dashboard and alert creation.
type stubMonitoring struct {
	err error
}

func (m *stubMonitoring) Provision(ctx context.Context, name, environment string) (string, string, map[string]any, error) {
	if m.err != nil {
		return "", "", nil, m.err
	}
	return "https://grafana.acme.internal/d/" + name,
		"https://prometheus.acme.internal/graph",
		map[string]any{"grafana_dashboard": "dashboard-" + name},
		nil
}

type env struct {
	server *server.Server
	cicd   *stubCICD
	infra  *stubInfra
	mon    *stubMonitoring
	ts     *httptest.Server
}

func newEnv(t *testing.T) *env {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "platform.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cicd := &stubCICD{}
	infra := &stubInfra{}
	mon := &stubMonitoring{}
	orch := platform.NewOrchestrator(st, cicd, infra, mon, logger)
	srv := server.NewServer(st, orch, operation.NewTracker(), infra, logger, true)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &env{server: srv, cicd: cicd, infra: infra, mon: mon, ts: ts}
}

func (e *env) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reqBody []byte
	if body != nil {
		var err error
		reqBody, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
	}

	req, err := http.NewRequest(method, e.ts.URL+path, bytes.NewReader(reqBody))
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	return resp, buf.Bytes()
}

// TestServiceProvisioningFlow walks the full lifecycle of a service
// over HTTP: create, provision, verify, delete.
func TestServiceProvisioningFlow(t *testing.T) {
	e := newEnv(t)

	resp, body := e.do(t, "POST", "/api/v1/services", map[string]any{
		"name":         "checkout-api",
		"team":         "payments",
		"service_type": "api",
		"environment":  "staging",
		"description":  "checkout processing API",
		"tags":         []string{"payments"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", resp.StatusCode, body)
	}

	var svc store.Service
	if err := json.Unmarshal(body, &svc); err != nil {
		t.Fatalf("Failed to decode service: %v", err)
	}
	if svc.Status != store.StatusPending {
		t.Fatalf("Expected pending status, got %q", svc.Status)
	}

	resp, body = e.do(t, "POST", fmt.Sprintf("/api/v1/services/%d/provision", svc.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, body)
	}

	var provisioned store.Service
	if err := json.Unmarshal(body, &provisioned); err != nil {
		t.Fatalf("Failed to decode service: %v", err)
	}
	if provisioned.Status != store.StatusRunning {
		t.Errorf("Expected running status, got %q", provisioned.Status)
	}
	if provisioned.CICDStatus != store.CICDConfigured {
		t.Errorf("Expected cicd configured, got %q", provisioned.CICDStatus)
	}
	if provisioned.InfrastructureStatus != store.InfraProvisioned {
		t.Errorf("Expected infrastructure provisioned, got %q", provisioned.InfrastructureStatus)
	}
	if provisioned.MonitoringStatus != store.MonitoringConfigured {
		t.Errorf("Expected monitoring configured, got %q", provisioned.MonitoringStatus)
	}
	if provisioned.DeploymentURL == nil || *provisioned.DeploymentURL != "http://checkout-api.staging.acme.internal" {
		t.Errorf("Unexpected deployment URL: %v", provisioned.DeploymentURL)
	}

	resp, _ = e.do(t, "DELETE", fmt.Sprintf("/api/v1/services/%d", svc.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 on delete, got %d", resp.StatusCode)
	}
	if len(e.infra.destroyed) != 1 || e.infra.destroyed[0] != "checkout-api" {
		t.Errorf("Expected infrastructure teardown for checkout-api, got %v", e.infra.destroyed)
	}

	resp, _ = e.do(t, "GET", fmt.Sprintf("/api/v1/services/%d", svc.ID), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", resp.StatusCode)
	}
}

// TestProvisioningFailureMarksService covers a sub-step failure: the
// service ends up failed while the healthy components still complete.
func TestProvisioningFailureMarksService(t *testing.T) {
	e := newEnv(t)
	e.cicd.err = fmt.Errorf("github api rate limited")

	resp, body := e.do(t, "POST", "/api/v1/services", map[string]any{
		"name":         "checkout-api",
		"team":         "payments",
		"service_type": "api",
		"environment":  "dev",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", resp.StatusCode, body)
	}

	var svc store.Service
	if err := json.Unmarshal(body, &svc); err != nil {
		t.Fatalf("Failed to decode service: %v", err)
	}

	resp, _ = e.do(t, "POST", fmt.Sprintf("/api/v1/services/%d/provision", svc.ID), nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", resp.StatusCode)
	}

	_, body = e.do(t, "GET", fmt.Sprintf("/api/v1/services/%d", svc.ID), nil)
	var after store.Service
	if err := json.Unmarshal(body, &after); err != nil {
		t.Fatalf("Failed to decode service: %v", err)
	}

	if after.Status != store.StatusFailed {
		t.Errorf("Expected failed status, got %q", after.Status)
	}
	if after.CICDStatus != store.CICDFailed {
		t.Errorf("Expected cicd failed, got %q", after.CICDStatus)
	}
	if after.InfrastructureStatus != store.InfraProvisioned {
		t.Errorf("Expected infrastructure still provisioned, got %q", after.InfrastructureStatus)
	}
}

// TestBackgroundInfrastructureOperation exercises the async
// infrastructure endpoints end to end.
func TestBackgroundInfrastructureOperation(t *testing.T) {
	e := newEnv(t)

	resp, body := e.do(t, "POST", "/api/v1/infrastructure/provision", map[string]any{
		"service_name": "checkout-api",
		"service_type": "api",
		"environment":  "prod",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", resp.StatusCode, body)
	}

	var accepted map[string]string
	if err := json.Unmarshal(body, &accepted); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if accepted["operation_id"] == "" || accepted["status"] != "started" {
		t.Fatalf("Unexpected accept response: %v", accepted)
	}

	e.server.WaitForOperations()

	resp, body = e.do(t, "GET", accepted["check_status_url"], nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var record operation.Record
	if err := json.Unmarshal(body, &record); err != nil {
		t.Fatalf("Failed to decode operation: %v", err)
	}
	if record.Status != operation.StatusCompleted {
		t.Errorf("Expected completed operation, got %q", record.Status)
	}
	if record.Outputs["endpoint"] != "http://checkout-api.prod.acme.internal" {
		t.Errorf("Unexpected outputs: %v", record.Outputs)
	}
}

// TestTemplateDrivenCreation creates a service from a built-in
// template and checks the merged defaults.
func TestTemplateDrivenCreation(t *testing.T) {
	e := newEnv(t)

	resp, body := e.do(t, "POST", "/api/v1/services/from-template/celery-worker", map[string]any{
		"name":         "email-worker",
		"team":         "growth",
		"service_type": "worker",
		"environment":  "dev",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", resp.StatusCode, body)
	}

	var svc store.Service
	if err := json.Unmarshal(body, &svc); err != nil {
		t.Fatalf("Failed to decode service: %v", err)
	}
	if svc.ServiceType != store.ServiceTypeWorker {
		t.Errorf("Expected worker type, got %q", svc.ServiceType)
	}
	if svc.Configuration["framework"] != "celery" {
		t.Errorf("Expected celery framework default, got %v", svc.Configuration["framework"])
	}
	if svc.InfrastructureConfig["replicas"] != float64(2) {
		t.Errorf("Expected replica default, got %v", svc.InfrastructureConfig["replicas"])
	}
}
