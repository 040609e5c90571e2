package server

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
	"sync/atomic"
	"testing"

	"platformd/internal/operation"
	"platformd/internal/platform"
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
	return "https://github.com/test-org/" + name, map[string]any{"file": ".github/workflows/ci-cd.yml"}, nil
}

type fakeInfra struct {
	provisions atomic.Int32
	destroys   atomic.Int32
	err        error
	destroyErr error
}

func (f *fakeInfra) Provision(ctx context.Context, name, serviceType, environment string) (string, map[string]any, error) {
	f.provisions.Add(1)
	if f.err != nil {
		return "", nil, f.err
	}
	return fmt.Sprintf("http://%s.%s.example.internal", name, environment), map[string]any{"cluster": name + "-cluster"}, nil
}

func (f *fakeInfra) Destroy(ctx context.Context, name, environment string) error {
	f.destroys.Add(1)
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
	return "https://grafana.example.internal/d/" + name,
		"https://prometheus.example.internal/graph",
		map[string]any{"grafana_dashboard": "dashboard-" + name}, nil
}

type testFixture struct {
	server *Server
	cicd   *fakeCICD
	infra  *fakeInfra
	mon    *fakeMonitoring
}

func setupTestServer(t *testing.T) *testFixture {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "platform.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cicd := &fakeCICD{}
	infra := &fakeInfra{}
	mon := &fakeMonitoring{}
	orch := platform.NewOrchestrator(st, cicd, infra, mon, logger)

	server := NewServer(st, orch, operation.NewTracker(), infra, logger, true)

	return &testFixture{server: server, cicd: cicd, infra: infra, mon: mon}
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func createTestService(t *testing.T, s *Server, name string) store.Service {
	t.Helper()

	rr := doRequest(t, s, "POST", "/api/v1/services", map[string]any{
		"name":         name,
		"team":         "platform",
		"service_type": "api",
		"environment":  "dev",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201 creating service, got %d: %s", rr.Code, rr.Body.String())
	}

	var svc store.Service
	decodeBody(t, rr, &svc)
	return svc
}

func TestHandleCreateService(t *testing.T) {
	fx := setupTestServer(t)

	svc := createTestService(t, fx.server, "orders-api")

	if svc.ID == 0 {
		t.Error("Expected non-zero service ID")
	}
	if svc.Status != store.StatusPending {
		t.Errorf("Expected status pending, got %q", svc.Status)
	}
	if svc.CICDStatus != store.CICDNotConfigured {
		t.Errorf("Expected cicd_status not_configured, got %q", svc.CICDStatus)
	}
}

func TestHandleCreateService_DuplicateName(t *testing.T) {
	fx := setupTestServer(t)

	createTestService(t, fx.server, "orders-api")

	rr := doRequest(t, fx.server, "POST", "/api/v1/services", map[string]any{
		"name":         "orders-api",
		"team":         "platform",
		"service_type": "api",
		"environment":  "dev",
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}

	var response map[string]string
	decodeBody(t, rr, &response)
	if response["error"] != "Service with this name already exists" {
		t.Errorf("Unexpected error message: %v", response)
	}
}

func TestHandleCreateService_InvalidPayload(t *testing.T) {
	fx := setupTestServer(t)

	tests := []struct {
		name    string
		payload map[string]any
	}{
		{"missing name", map[string]any{"team": "platform", "service_type": "api", "environment": "dev"}},
		{"bad service type", map[string]any{"name": "x-api", "team": "platform", "service_type": "lambda", "environment": "dev"}},
		{"bad environment", map[string]any{"name": "x-api", "team": "platform", "service_type": "api", "environment": "qa"}},
		{"bad name characters", map[string]any{"name": "x api;rm", "team": "platform", "service_type": "api", "environment": "dev"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := doRequest(t, fx.server, "POST", "/api/v1/services", tc.payload)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d: %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestHandleListServices_TeamFilter(t *testing.T) {
	fx := setupTestServer(t)

	createTestService(t, fx.server, "orders-api")

	rr := doRequest(t, fx.server, "POST", "/api/v1/services", map[string]any{
		"name":         "billing-api",
		"team":         "billing",
		"service_type": "api",
		"environment":  "dev",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", rr.Code)
	}

	rr = doRequest(t, fx.server, "GET", "/api/v1/services?team=billing", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var services []store.Service
	decodeBody(t, rr, &services)
	if len(services) != 1 || services[0].Name != "billing-api" {
		t.Errorf("Expected only billing-api, got %+v", services)
	}
}

func TestHandleGetService_NotFound(t *testing.T) {
	fx := setupTestServer(t)

	rr := doRequest(t, fx.server, "GET", "/api/v1/services/99", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}

func TestHandleUpdateService_PartialPatch(t *testing.T) {
	fx := setupTestServer(t)

	svc := createTestService(t, fx.server, "orders-api")

	rr := doRequest(t, fx.server, "PUT", fmt.Sprintf("/api/v1/services/%d", svc.ID), map[string]any{
		"description": "order management API",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var updated store.Service
	decodeBody(t, rr, &updated)
	if updated.Description != "order management API" {
		t.Errorf("Expected updated description, got %q", updated.Description)
	}
	if updated.Team != "platform" {
		t.Errorf("Expected team untouched, got %q", updated.Team)
	}
}

func TestHandleUpdateService_DuplicateName(t *testing.T) {
	fx := setupTestServer(t)

	createTestService(t, fx.server, "orders-api")
	svc := createTestService(t, fx.server, "billing-api")

	rr := doRequest(t, fx.server, "PUT", fmt.Sprintf("/api/v1/services/%d", svc.ID), map[string]any{
		"name": "orders-api",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}

	var response map[string]string
	decodeBody(t, rr, &response)
	if response["error"] != "Service with this name already exists" {
		t.Errorf("Unexpected error message: %v", response)
	}
}

func TestHandleProvisionService(t *testing.T) {
	fx := setupTestServer(t)

	svc := createTestService(t, fx.server, "orders-api")

	rr := doRequest(t, fx.server, "POST", fmt.Sprintf("/api/v1/services/%d/provision", svc.ID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var provisioned store.Service
	decodeBody(t, rr, &provisioned)

	if provisioned.Status != store.StatusRunning {
		t.Errorf("Expected status running, got %q", provisioned.Status)
	}
	if provisioned.CICDStatus != store.CICDConfigured {
		t.Errorf("Expected cicd_status configured, got %q", provisioned.CICDStatus)
	}
	if provisioned.InfrastructureStatus != store.InfraProvisioned {
		t.Errorf("Expected infrastructure_status provisioned, got %q", provisioned.InfrastructureStatus)
	}
	if provisioned.RepositoryURL == nil || *provisioned.RepositoryURL != "https://github.com/test-org/orders-api" {
		t.Errorf("Unexpected repository URL: %v", provisioned.RepositoryURL)
	}
	if fx.cicd.calls.Load() != 1 || fx.infra.provisions.Load() != 1 || fx.mon.calls.Load() != 1 {
		t.Errorf("Expected each provisioner called once, got cicd=%d infra=%d mon=%d",
			fx.cicd.calls.Load(), fx.infra.provisions.Load(), fx.mon.calls.Load())
	}
}

func TestHandleProvisionService_DisabledComponents(t *testing.T) {
	fx := setupTestServer(t)

	svc := createTestService(t, fx.server, "orders-api")

	rr := doRequest(t, fx.server, "POST", fmt.Sprintf("/api/v1/services/%d/provision", svc.ID), map[string]any{
		"provision_cicd":           false,
		"provision_infrastructure": false,
		"provision_monitoring":     false,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var provisioned store.Service
	decodeBody(t, rr, &provisioned)

	if provisioned.Status != store.StatusRunning {
		t.Errorf("Expected status running, got %q", provisioned.Status)
	}
	if provisioned.CICDStatus != store.CICDNotConfigured {
		t.Errorf("Expected cicd_status untouched, got %q", provisioned.CICDStatus)
	}
	if fx.cicd.calls.Load() != 0 || fx.infra.provisions.Load() != 0 || fx.mon.calls.Load() != 0 {
		t.Error("Expected no provisioner calls")
	}
}

func TestHandleProvisionService_Failure(t *testing.T) {
	fx := setupTestServer(t)
	fx.cicd.err = fmt.Errorf("github unavailable")

	svc := createTestService(t, fx.server, "orders-api")

	rr := doRequest(t, fx.server, "POST", fmt.Sprintf("/api/v1/services/%d/provision", svc.ID), nil)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", rr.Code)
	}

	var response map[string]string
	decodeBody(t, rr, &response)
	if response["error"] == "" {
		t.Error("Expected error message in response")
	}

	rr = doRequest(t, fx.server, "GET", fmt.Sprintf("/api/v1/services/%d", svc.ID), nil)
	var after store.Service
	decodeBody(t, rr, &after)
	if after.Status != store.StatusFailed {
		t.Errorf("Expected status failed after error, got %q", after.Status)
	}
}

func TestHandleProvisionService_Unknown(t *testing.T) {
	fx := setupTestServer(t)

	rr := doRequest(t, fx.server, "POST", "/api/v1/services/42/provision", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}

func TestHandleDeleteService(t *testing.T) {
	fx := setupTestServer(t)

	svc := createTestService(t, fx.server, "orders-api")

	rr := doRequest(t, fx.server, "DELETE", fmt.Sprintf("/api/v1/services/%d", svc.ID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	if fx.infra.destroys.Load() != 1 {
		t.Errorf("Expected one destroy call, got %d", fx.infra.destroys.Load())
	}

	rr = doRequest(t, fx.server, "GET", fmt.Sprintf("/api/v1/services/%d", svc.ID), nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 after delete, got %d", rr.Code)
	}
}

func TestHandleDeleteService_CleanupFailureStillDeletes(t *testing.T) {
	fx := setupTestServer(t)
	fx.infra.destroyErr = fmt.Errorf("terraform state locked")

	svc := createTestService(t, fx.server, "orders-api")

	rr := doRequest(t, fx.server, "DELETE", fmt.Sprintf("/api/v1/services/%d", svc.ID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200 despite cleanup failure, got %d", rr.Code)
	}

	rr = doRequest(t, fx.server, "GET", fmt.Sprintf("/api/v1/services/%d", svc.ID), nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected record removed, got %d", rr.Code)
	}
}

func TestHandleListTemplates(t *testing.T) {
	fx := setupTestServer(t)

	rr := doRequest(t, fx.server, "GET", "/api/v1/services/templates/list", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var response struct {
		Templates []platform.Template `json:"templates"`
		Count     int                 `json:"count"`
	}
	decodeBody(t, rr, &response)

	if response.Count != 3 || len(response.Templates) != 3 {
		t.Errorf("Expected 3 templates, got count=%d len=%d", response.Count, len(response.Templates))
	}
}

func TestHandleCreateServiceFromTemplate(t *testing.T) {
	fx := setupTestServer(t)

	rr := doRequest(t, fx.server, "POST", "/api/v1/services/from-template/fastapi-api", map[string]any{
		"name":         "orders-api",
		"team":         "platform",
		"service_type": "api",
		"environment":  "dev",
		"configuration": map[string]any{
			"replicas": 5,
		},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var svc store.Service
	decodeBody(t, rr, &svc)

	if svc.ServiceType != store.ServiceTypeAPI {
		t.Errorf("Expected service type api, got %q", svc.ServiceType)
	}
	// Request value overrides the template default.
	if got, ok := svc.Configuration["replicas"].(float64); !ok || got != 5 {
		t.Errorf("Expected replicas 5 from request, got %v", svc.Configuration["replicas"])
	}
	// Template defaults that the request does not name survive.
	if svc.Configuration["framework"] != "fastapi" {
		t.Errorf("Expected template framework default, got %v", svc.Configuration["framework"])
	}
}

func TestHandleCreateServiceFromTemplate_Unknown(t *testing.T) {
	fx := setupTestServer(t)

	rr := doRequest(t, fx.server, "POST", "/api/v1/services/from-template/nope", map[string]any{
		"name":         "orders-api",
		"team":         "platform",
		"service_type": "api",
		"environment":  "dev",
	})
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}

func TestDeploymentLifecycle(t *testing.T) {
	fx := setupTestServer(t)

	rr := doRequest(t, fx.server, "POST", "/api/v1/deployments", map[string]any{
		"name":         "orders-api-deploy",
		"team":         "platform",
		"environment":  "staging",
		"service_type": "api",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var d store.Deployment
	decodeBody(t, rr, &d)
	if d.Status != "pending" {
		t.Errorf("Expected status pending, got %q", d.Status)
	}

	rr = doRequest(t, fx.server, "POST", fmt.Sprintf("/api/v1/deployments/%d/trigger", d.ID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var triggered map[string]any
	decodeBody(t, rr, &triggered)
	if triggered["status"] != "running" {
		t.Errorf("Expected status running after trigger, got %v", triggered["status"])
	}

	rr = doRequest(t, fx.server, "DELETE", fmt.Sprintf("/api/v1/deployments/%d", d.ID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	rr = doRequest(t, fx.server, "GET", fmt.Sprintf("/api/v1/deployments/%d", d.ID), nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 after delete, got %d", rr.Code)
	}
}

func TestHandleUpdateDeployment_DuplicateName(t *testing.T) {
	fx := setupTestServer(t)

	var last store.Deployment
	for _, name := range []string{"orders-api-deploy", "billing-api-deploy"} {
		rr := doRequest(t, fx.server, "POST", "/api/v1/deployments", map[string]any{
			"name":         name,
			"team":         "platform",
			"environment":  "staging",
			"service_type": "api",
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("Expected status 201 for %s, got %d: %s", name, rr.Code, rr.Body.String())
		}
		decodeBody(t, rr, &last)
	}

	rr := doRequest(t, fx.server, "PUT", fmt.Sprintf("/api/v1/deployments/%d", last.ID), map[string]any{
		"name": "orders-api-deploy",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}

	var response map[string]string
	decodeBody(t, rr, &response)
	if response["error"] != "Deployment with this name already exists" {
		t.Errorf("Unexpected error message: %v", response)
	}
}

func TestHandleTriggerDeployment_NotFound(t *testing.T) {
	fx := setupTestServer(t)

	rr := doRequest(t, fx.server, "POST", "/api/v1/deployments/12/trigger", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}

func TestHandleProvisionInfrastructure(t *testing.T) {
	fx := setupTestServer(t)

	rr := doRequest(t, fx.server, "POST", "/api/v1/infrastructure/provision", map[string]any{
		"service_name": "orders-api",
		"service_type": "api",
		"environment":  "dev",
	})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}

	var response map[string]string
	decodeBody(t, rr, &response)

	opID := response["operation_id"]
	if opID == "" {
		t.Fatal("Expected operation_id in response")
	}
	if response["status"] != "started" {
		t.Errorf("Expected status started, got %q", response["status"])
	}
	if response["check_status_url"] != "/api/v1/infrastructure/operations/"+opID {
		t.Errorf("Unexpected check_status_url: %q", response["check_status_url"])
	}

	fx.server.WaitForOperations()

	rr = doRequest(t, fx.server, "GET", response["check_status_url"], nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var record operation.Record
	decodeBody(t, rr, &record)
	if record.Status != operation.StatusCompleted {
		t.Errorf("Expected operation completed, got %q", record.Status)
	}
	if record.Outputs["endpoint"] != "http://orders-api.dev.example.internal" {
		t.Errorf("Unexpected endpoint output: %v", record.Outputs["endpoint"])
	}
	if fx.infra.provisions.Load() != 1 {
		t.Errorf("Expected one provision call, got %d", fx.infra.provisions.Load())
	}
}

func TestHandleProvisionInfrastructure_UpdatesServiceRecord(t *testing.T) {
	fx := setupTestServer(t)

	svc := createTestService(t, fx.server, "orders-api")

	rr := doRequest(t, fx.server, "POST", "/api/v1/infrastructure/provision", map[string]any{
		"service_name": "orders-api",
		"service_type": "api",
		"environment":  "dev",
	})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", rr.Code)
	}

	fx.server.WaitForOperations()

	rr = doRequest(t, fx.server, "GET", fmt.Sprintf("/api/v1/services/%d", svc.ID), nil)
	var after store.Service
	decodeBody(t, rr, &after)
	if after.InfrastructureStatus != store.InfraProvisioned {
		t.Errorf("Expected infrastructure_status provisioned, got %q", after.InfrastructureStatus)
	}
	if after.DeploymentURL == nil || *after.DeploymentURL != "http://orders-api.dev.example.internal" {
		t.Errorf("Unexpected deployment URL: %v", after.DeploymentURL)
	}
}

func TestHandleProvisionInfrastructure_Failure(t *testing.T) {
	fx := setupTestServer(t)
	fx.infra.err = fmt.Errorf("terraform apply failed")

	rr := doRequest(t, fx.server, "POST", "/api/v1/infrastructure/provision", map[string]any{
		"service_name": "orders-api",
		"service_type": "api",
		"environment":  "dev",
	})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", rr.Code)
	}

	var response map[string]string
	decodeBody(t, rr, &response)

	fx.server.WaitForOperations()

	record, found := fx.server.Tracker.Get(response["operation_id"])
	if !found {
		t.Fatal("Expected operation record")
	}
	if record.Status != operation.StatusFailed {
		t.Errorf("Expected operation failed, got %q", record.Status)
	}
	if record.Error == "" {
		t.Error("Expected error message on failed operation")
	}
}

func TestHandleDestroyInfrastructure(t *testing.T) {
	fx := setupTestServer(t)

	rr := doRequest(t, fx.server, "POST", "/api/v1/infrastructure/destroy", map[string]any{
		"service_name": "orders-api",
		"environment":  "dev",
	})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}

	fx.server.WaitForOperations()

	if fx.infra.destroys.Load() != 1 {
		t.Errorf("Expected one destroy call, got %d", fx.infra.destroys.Load())
	}
}

func TestHandleGetOperation_NotFound(t *testing.T) {
	fx := setupTestServer(t)

	rr := doRequest(t, fx.server, "GET", "/api/v1/infrastructure/operations/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}

func TestHandleListAndCleanupOperations(t *testing.T) {
	fx := setupTestServer(t)

	rr := doRequest(t, fx.server, "POST", "/api/v1/infrastructure/provision", map[string]any{
		"service_name": "orders-api",
		"service_type": "api",
		"environment":  "dev",
	})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", rr.Code)
	}
	fx.server.WaitForOperations()

	rr = doRequest(t, fx.server, "GET", "/api/v1/infrastructure/operations", nil)
	var listing struct {
		Operations []operation.Record `json:"operations"`
		Count      int                `json:"count"`
	}
	decodeBody(t, rr, &listing)
	if listing.Count != 1 {
		t.Fatalf("Expected 1 operation, got %d", listing.Count)
	}

	// A day-long retention keeps the fresh record.
	rr = doRequest(t, fx.server, "DELETE", "/api/v1/infrastructure/operations/cleanup", nil)
	var cleanup map[string]any
	decodeBody(t, rr, &cleanup)
	if cleanup["cleaned_count"].(float64) != 0 {
		t.Errorf("Expected nothing cleaned at default age, got %v", cleanup["cleaned_count"])
	}

	rr = doRequest(t, fx.server, "DELETE", "/api/v1/infrastructure/operations/cleanup?max_age_hours=0", nil)
	decodeBody(t, rr, &cleanup)
	if cleanup["cleaned_count"].(float64) != 1 {
		t.Errorf("Expected one record cleaned, got %v", cleanup["cleaned_count"])
	}
}

func TestHealthEndpoints(t *testing.T) {
	fx := setupTestServer(t)

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		rr := doRequest(t, fx.server, "GET", path, nil)
		if rr.Code != http.StatusOK {
			t.Errorf("Expected status 200 for %s, got %d", path, rr.Code)
		}
	}

	rr := doRequest(t, fx.server, "GET", "/health/ready", nil)
	var response map[string]string
	decodeBody(t, rr, &response)
	if response["database"] != "connected" {
		t.Errorf("Expected database connected, got %v", response)
	}
}
