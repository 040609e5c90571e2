package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"platformd/internal/operation"
	"platformd/internal/security"
	"platformd/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// DefaultOperationMaxAgeHours bounds how long completed operation
// records are kept when the cleanup endpoint is called without an
// explicit age.
const DefaultOperationMaxAgeHours = 24

// ProvisionInfraPayload is the request body for a background
// infrastructure provisioning operation.
type ProvisionInfraPayload struct {
	ServiceName string `json:"service_name" validate:"required,min=1,max=100"`
	ServiceType string `json:"service_type" validate:"required"`
	Environment string `json:"environment" validate:"required"`
}

// DestroyInfraPayload is the request body for a background
// infrastructure destroy operation.
type DestroyInfraPayload struct {
	ServiceName string `json:"service_name" validate:"required,min=1,max=100"`
	Environment string `json:"environment" validate:"required"`
}

// HandleProvisionInfrastructure handles POST /api/v1/infrastructure/provision.
// The operation runs in a background goroutine; the response carries
// an operation ID that can be polled for progress.
func (s *Server) HandleProvisionInfrastructure(w http.ResponseWriter, r *http.Request) {
	var payload ProvisionInfraPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxPayloadBytes)).Decode(&payload); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if !s.validateStruct(w, payload) {
		return
	}
	if !s.validateInfraParams(w, payload.ServiceName, payload.ServiceType, payload.Environment) {
		return
	}

	opID := s.Tracker.Begin(operation.KindProvision,
		payload.ServiceName, payload.ServiceType, payload.Environment,
		"Initializing infrastructure provisioning...")

	s.opsWg.Add(1)
	go func() {
		defer s.opsWg.Done()
		s.runProvisionOperation(context.Background(), opID, payload)
	}()

	s.respondJSON(w, http.StatusAccepted, map[string]string{
		"operation_id":     opID,
		"status":           "started",
		"message":          fmt.Sprintf("Infrastructure provisioning started for %s", payload.ServiceName),
		"check_status_url": fmt.Sprintf("/api/v1/infrastructure/operations/%s", opID),
	})
}

// HandleDestroyInfrastructure handles POST /api/v1/infrastructure/destroy
func (s *Server) HandleDestroyInfrastructure(w http.ResponseWriter, r *http.Request) {
	var payload DestroyInfraPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxPayloadBytes)).Decode(&payload); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if !s.validateStruct(w, payload) {
		return
	}
	if !s.validateInfraParams(w, payload.ServiceName, "", payload.Environment) {
		return
	}

	opID := s.Tracker.Begin(operation.KindDestroy,
		payload.ServiceName, "", payload.Environment,
		"Initializing infrastructure teardown...")

	s.opsWg.Add(1)
	go func() {
		defer s.opsWg.Done()
		s.runDestroyOperation(context.Background(), opID, payload)
	}()

	s.respondJSON(w, http.StatusAccepted, map[string]string{
		"operation_id":     opID,
		"status":           "started",
		"message":          fmt.Sprintf("Infrastructure destruction started for %s", payload.ServiceName),
		"check_status_url": fmt.Sprintf("/api/v1/infrastructure/operations/%s", opID),
	})
}

// HandleGetOperation handles GET /api/v1/infrastructure/operations/{operationID}
func (s *Server) HandleGetOperation(w http.ResponseWriter, r *http.Request) {
	opID := chi.URLParam(r, "operationID")
	record, found := s.Tracker.Get(opID)
	if !found {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Operation %s not found", opID))
		return
	}

	s.respondJSON(w, http.StatusOK, record)
}

// HandleListOperations handles GET /api/v1/infrastructure/operations
func (s *Server) HandleListOperations(w http.ResponseWriter, r *http.Request) {
	operations := s.Tracker.List()
	s.respondJSON(w, http.StatusOK, map[string]any{
		"operations": operations,
		"count":      len(operations),
	})
}

// HandleCleanupOperations handles DELETE /api/v1/infrastructure/operations/cleanup
func (s *Server) HandleCleanupOperations(w http.ResponseWriter, r *http.Request) {
	maxAgeHours := queryInt(r, "max_age_hours", DefaultOperationMaxAgeHours)

	cleaned := s.Tracker.Sweep(time.Duration(maxAgeHours) * time.Hour)

	s.respondJSON(w, http.StatusOK, map[string]any{
		"message":       fmt.Sprintf("Cleaned up %d completed operations", cleaned),
		"cleaned_count": cleaned,
		"max_age_hours": maxAgeHours,
	})
}

// runProvisionOperation drives a background provisioning operation,
// updating the tracker as it goes. If a service record with the same
// name exists, its infrastructure sub-status is updated as well.
func (s *Server) runProvisionOperation(ctx context.Context, opID string, payload ProvisionInfraPayload) {
	s.Tracker.SetProgress(opID, "Provisioning infrastructure...")

	endpoint, outputs, err := s.Infrastructure.Provision(ctx, payload.ServiceName, payload.ServiceType, payload.Environment)
	if err != nil {
		s.Logger.Error("Background provisioning failed",
			"operation_id", opID, "service", payload.ServiceName, "error", err)
		s.Tracker.Fail(opID, "Infrastructure provisioning failed", err.Error())
		s.recordInfraResult(ctx, payload.ServiceName, store.InfraFailed, "", nil)
		return
	}

	if outputs == nil {
		outputs = map[string]any{}
	}
	if endpoint != "" {
		outputs["endpoint"] = endpoint
	}

	s.Tracker.Complete(opID, "Infrastructure provisioned successfully", outputs)
	s.recordInfraResult(ctx, payload.ServiceName, store.InfraProvisioned, endpoint, outputs)
	s.Logger.Info("Background provisioning completed",
		"operation_id", opID, "service", payload.ServiceName, "endpoint", endpoint)
}

// runDestroyOperation drives a background teardown operation.
func (s *Server) runDestroyOperation(ctx context.Context, opID string, payload DestroyInfraPayload) {
	s.Tracker.SetProgress(opID, "Destroying infrastructure...")

	if err := s.Infrastructure.Destroy(ctx, payload.ServiceName, payload.Environment); err != nil {
		s.Logger.Error("Background destroy failed",
			"operation_id", opID, "service", payload.ServiceName, "error", err)
		s.Tracker.Fail(opID, "Infrastructure destruction failed", err.Error())
		return
	}

	s.Tracker.Complete(opID, "Infrastructure destroyed successfully", nil)
	s.recordInfraResult(ctx, payload.ServiceName, store.InfraNotProvisioned, "", nil)
	s.Logger.Info("Background destroy completed",
		"operation_id", opID, "service", payload.ServiceName)
}

// recordInfraResult reflects an operation outcome onto the matching
// service record, if one exists. Operations on names without a record
// are allowed; the update is skipped silently.
func (s *Server) recordInfraResult(ctx context.Context, serviceName, status, endpoint string, outputs map[string]any) {
	svc, err := s.Store.GetServiceByName(ctx, serviceName)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.Logger.Error("Failed to look up service for operation result", "service", serviceName, "error", err)
		}
		return
	}

	if err := s.Store.SetInfrastructureResult(ctx, svc.ID, status, endpoint, outputs); err != nil {
		s.Logger.Error("Failed to record operation result", "service", serviceName, "error", err)
	}
}

func (s *Server) validateInfraParams(w http.ResponseWriter, serviceName, serviceType, environment string) bool {
	if err := security.ValidateServiceName(serviceName); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid service name: %v", err))
		return false
	}
	if serviceType != "" && !store.ValidServiceType(store.ServiceType(serviceType)) {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid service type '%s'", serviceType))
		return false
	}
	if err := security.ValidateEnvironment(environment); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid environment: %v", err))
		return false
	}
	return true
}

// validateStruct runs tag validation and writes a 400 on failure.
func (s *Server) validateStruct(w http.ResponseWriter, v any) bool {
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid field '%s'", verrs[0].Field()))
			return false
		}
		s.respondError(w, http.StatusBadRequest, "Invalid payload")
		return false
	}
	return true
}
