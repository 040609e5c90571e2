package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"platformd/internal/platform"
	"platformd/internal/security"
	"platformd/internal/store"

	"github.com/go-chi/chi/v5"
)

const (
	MaxPayloadBytes  = 1_000_000 // 1 MB
	DefaultListLimit = 100
)

// CreateServicePayload is the request body for creating a service.
type CreateServicePayload struct {
	Name                 string         `json:"name" validate:"required,min=1,max=100"`
	Team                 string         `json:"team" validate:"required,min=1,max=100"`
	ServiceType          string         `json:"service_type" validate:"required"`
	Environment          string         `json:"environment" validate:"required"`
	Description          string         `json:"description"`
	Tags                 []string       `json:"tags"`
	Configuration        map[string]any `json:"configuration"`
	InfrastructureConfig map[string]any `json:"infrastructure_config"`
	MonitoringConfig     map[string]any `json:"monitoring_config"`
}

// UpdateServicePayload is the request body for updating a service.
// Absent fields are left untouched.
type UpdateServicePayload struct {
	Name                 *string         `json:"name"`
	Team                 *string         `json:"team"`
	ServiceType          *string         `json:"service_type"`
	Environment          *string         `json:"environment"`
	Description          *string         `json:"description"`
	Tags                 *[]string       `json:"tags"`
	Configuration        *map[string]any `json:"configuration"`
	InfrastructureConfig *map[string]any `json:"infrastructure_config"`
	MonitoringConfig     *map[string]any `json:"monitoring_config"`
}

// HandleCreateService handles POST /api/v1/services
func (s *Server) HandleCreateService(w http.ResponseWriter, r *http.Request) {
	payload, ok := s.decodeCreateServicePayload(w, r)
	if !ok {
		return
	}

	svc := serviceFromPayload(payload)
	created, err := s.Store.CreateService(r.Context(), svc)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			s.respondError(w, http.StatusBadRequest, "Service with this name already exists")
			return
		}
		s.Logger.Error("Failed to create service", "error", err, "service", payload.Name)
		s.respondError(w, http.StatusInternalServerError, "Failed to create service")
		return
	}

	s.respondJSON(w, http.StatusCreated, created)
}

// HandleListServices handles GET /api/v1/services
func (s *Server) HandleListServices(w http.ResponseWriter, r *http.Request) {
	team := r.URL.Query().Get("team")
	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", DefaultListLimit)

	services, err := s.Store.ListServices(r.Context(), team, skip, limit)
	if err != nil {
		s.Logger.Error("Failed to list services", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to list services")
		return
	}

	s.respondJSON(w, http.StatusOK, services)
}

// HandleGetService handles GET /api/v1/services/{serviceID}
func (s *Server) HandleGetService(w http.ResponseWriter, r *http.Request) {
	id, ok := s.serviceID(w, r)
	if !ok {
		return
	}

	svc, err := s.Store.GetService(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "Service not found")
			return
		}
		s.Logger.Error("Failed to get service", "error", err, "id", id)
		s.respondError(w, http.StatusInternalServerError, "Failed to get service")
		return
	}

	s.respondJSON(w, http.StatusOK, svc)
}

// HandleUpdateService handles PUT /api/v1/services/{serviceID}
func (s *Server) HandleUpdateService(w http.ResponseWriter, r *http.Request) {
	id, ok := s.serviceID(w, r)
	if !ok {
		return
	}

	var payload UpdateServicePayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxPayloadBytes)).Decode(&payload); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	patch, err := patchFromPayload(payload)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.Store.UpdateService(r.Context(), id, patch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "Service not found")
			return
		}
		if errors.Is(err, store.ErrDuplicate) {
			s.respondError(w, http.StatusBadRequest, "Service with this name already exists")
			return
		}
		s.Logger.Error("Failed to update service", "error", err, "id", id)
		s.respondError(w, http.StatusInternalServerError, "Failed to update service")
		return
	}

	s.respondJSON(w, http.StatusOK, updated)
}

// HandleDeleteService handles DELETE /api/v1/services/{serviceID}.
// Infrastructure cleanup runs first; cleanup failures are logged and
// the record is removed regardless.
func (s *Server) HandleDeleteService(w http.ResponseWriter, r *http.Request) {
	id, ok := s.serviceID(w, r)
	if !ok {
		return
	}

	if err := s.Orchestrator.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "Service not found")
			return
		}
		s.Logger.Error("Failed to delete service", "error", err, "id", id)
		s.respondError(w, http.StatusInternalServerError, "Failed to delete service")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"message": "Service deleted successfully"})
}

// HandleProvisionService handles POST /api/v1/services/{serviceID}/provision.
// Provisioning is synchronous: the response carries the final service
// record with per-component statuses.
func (s *Server) HandleProvisionService(w http.ResponseWriter, r *http.Request) {
	id, ok := s.serviceID(w, r)
	if !ok {
		return
	}

	// All components are enabled unless the body disables them.
	req := platform.ProvisionRequest{CICD: true, Infrastructure: true, Monitoring: true}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxPayloadBytes)).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "Invalid JSON payload")
			return
		}
	}

	svc, err := s.Orchestrator.Provision(r.Context(), id, req)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Provisioning failed: %v", err))
		return
	}

	s.respondJSON(w, http.StatusOK, svc)
}

// HandleListTemplates handles GET /api/v1/services/templates/list
func (s *Server) HandleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates := platform.Templates()
	s.respondJSON(w, http.StatusOK, map[string]any{
		"templates": templates,
		"count":     len(templates),
	})
}

// HandleCreateServiceFromTemplate handles POST /api/v1/services/from-template/{templateName}
func (s *Server) HandleCreateServiceFromTemplate(w http.ResponseWriter, r *http.Request) {
	templateName := chi.URLParam(r, "templateName")
	tmpl, found := platform.FindTemplate(templateName)
	if !found {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Template '%s' not found", templateName))
		return
	}

	payload, ok := s.decodeCreateServicePayload(w, r)
	if !ok {
		return
	}

	svc := serviceFromPayload(payload)
	tmpl.Apply(svc)

	created, err := s.Store.CreateService(r.Context(), svc)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			s.respondError(w, http.StatusBadRequest, "Service with this name already exists")
			return
		}
		s.Logger.Error("Failed to create service from template", "error", err, "template", templateName)
		s.respondError(w, http.StatusInternalServerError, "Failed to create service")
		return
	}

	s.respondJSON(w, http.StatusCreated, created)
}

// decodeCreateServicePayload decodes and validates a create payload.
// On failure it writes the error response and returns ok=false.
func (s *Server) decodeCreateServicePayload(w http.ResponseWriter, r *http.Request) (CreateServicePayload, bool) {
	var payload CreateServicePayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxPayloadBytes)).Decode(&payload); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return payload, false
	}

	if !s.validateStruct(w, payload) {
		return payload, false
	}

	if err := security.ValidateServiceName(payload.Name); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid service name: %v", err))
		return payload, false
	}
	if err := security.ValidateTeamName(payload.Team); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid team name: %v", err))
		return payload, false
	}
	if !store.ValidServiceType(store.ServiceType(payload.ServiceType)) {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid service type '%s'", payload.ServiceType))
		return payload, false
	}
	if !store.ValidEnvironment(store.Environment(payload.Environment)) {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid environment '%s'", payload.Environment))
		return payload, false
	}

	return payload, true
}

func serviceFromPayload(payload CreateServicePayload) *store.Service {
	return &store.Service{
		Name:                 payload.Name,
		Team:                 payload.Team,
		ServiceType:          store.ServiceType(payload.ServiceType),
		Environment:          store.Environment(payload.Environment),
		Description:          payload.Description,
		Tags:                 payload.Tags,
		Configuration:        payload.Configuration,
		InfrastructureConfig: payload.InfrastructureConfig,
		MonitoringConfig:     payload.MonitoringConfig,
	}
}

func patchFromPayload(payload UpdateServicePayload) (store.ServicePatch, error) {
	patch := store.ServicePatch{
		Description:          payload.Description,
		Tags:                 payload.Tags,
		Configuration:        payload.Configuration,
		InfrastructureConfig: payload.InfrastructureConfig,
		MonitoringConfig:     payload.MonitoringConfig,
	}

	if payload.Name != nil {
		if err := security.ValidateServiceName(*payload.Name); err != nil {
			return patch, fmt.Errorf("invalid service name: %w", err)
		}
		patch.Name = payload.Name
	}
	if payload.Team != nil {
		if err := security.ValidateTeamName(*payload.Team); err != nil {
			return patch, fmt.Errorf("invalid team name: %w", err)
		}
		patch.Team = payload.Team
	}
	if payload.ServiceType != nil {
		st := store.ServiceType(*payload.ServiceType)
		if !store.ValidServiceType(st) {
			return patch, fmt.Errorf("invalid service type '%s'", *payload.ServiceType)
		}
		patch.ServiceType = &st
	}
	if payload.Environment != nil {
		env := store.Environment(*payload.Environment)
		if !store.ValidEnvironment(env) {
			return patch, fmt.Errorf("invalid environment '%s'", *payload.Environment)
		}
		patch.Environment = &env
	}

	return patch, nil
}

// serviceID extracts and parses the serviceID URL parameter.
func (s *Server) serviceID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "serviceID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid service ID '%s'", raw))
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
