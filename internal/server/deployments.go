package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"platformd/internal/security"
	"platformd/internal/store"

	"github.com/go-chi/chi/v5"
)

// CreateDeploymentPayload is the request body for creating a deployment.
type CreateDeploymentPayload struct {
	Name          string         `json:"name" validate:"required,min=1,max=100"`
	Team          string         `json:"team" validate:"required,min=1,max=100"`
	Environment   string         `json:"environment" validate:"required"`
	ServiceType   string         `json:"service_type" validate:"required"`
	Configuration map[string]any `json:"configuration"`
}

// UpdateDeploymentPayload is the request body for updating a
// deployment. Absent fields are left untouched.
type UpdateDeploymentPayload struct {
	Name          *string         `json:"name"`
	Team          *string         `json:"team"`
	Environment   *string         `json:"environment"`
	ServiceType   *string         `json:"service_type"`
	Configuration *map[string]any `json:"configuration"`
	Status        *string         `json:"status"`
}

// HandleCreateDeployment handles POST /api/v1/deployments
func (s *Server) HandleCreateDeployment(w http.ResponseWriter, r *http.Request) {
	var payload CreateDeploymentPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxPayloadBytes)).Decode(&payload); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	if !s.validateStruct(w, payload) {
		return
	}
	if err := security.ValidateServiceName(payload.Name); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid deployment name: %v", err))
		return
	}
	if err := security.ValidateEnvironment(payload.Environment); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid environment: %v", err))
		return
	}

	created, err := s.Store.CreateDeployment(r.Context(), &store.Deployment{
		Name:          payload.Name,
		Team:          payload.Team,
		Environment:   payload.Environment,
		ServiceType:   payload.ServiceType,
		Configuration: payload.Configuration,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			s.respondError(w, http.StatusBadRequest, "Deployment with this name already exists")
			return
		}
		s.Logger.Error("Failed to create deployment", "error", err, "deployment", payload.Name)
		s.respondError(w, http.StatusInternalServerError, "Failed to create deployment")
		return
	}

	s.respondJSON(w, http.StatusCreated, created)
}

// HandleListDeployments handles GET /api/v1/deployments
func (s *Server) HandleListDeployments(w http.ResponseWriter, r *http.Request) {
	team := r.URL.Query().Get("team")
	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", DefaultListLimit)

	deployments, err := s.Store.ListDeployments(r.Context(), team, skip, limit)
	if err != nil {
		s.Logger.Error("Failed to list deployments", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to list deployments")
		return
	}

	s.respondJSON(w, http.StatusOK, deployments)
}

// HandleGetDeployment handles GET /api/v1/deployments/{deploymentID}
func (s *Server) HandleGetDeployment(w http.ResponseWriter, r *http.Request) {
	id, ok := s.deploymentID(w, r)
	if !ok {
		return
	}

	d, err := s.Store.GetDeployment(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "Deployment not found")
			return
		}
		s.Logger.Error("Failed to get deployment", "error", err, "id", id)
		s.respondError(w, http.StatusInternalServerError, "Failed to get deployment")
		return
	}

	s.respondJSON(w, http.StatusOK, d)
}

// HandleUpdateDeployment handles PUT /api/v1/deployments/{deploymentID}
func (s *Server) HandleUpdateDeployment(w http.ResponseWriter, r *http.Request) {
	id, ok := s.deploymentID(w, r)
	if !ok {
		return
	}

	var payload UpdateDeploymentPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxPayloadBytes)).Decode(&payload); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	if payload.Name != nil {
		if err := security.ValidateServiceName(*payload.Name); err != nil {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid deployment name: %v", err))
			return
		}
	}
	if payload.Environment != nil {
		if err := security.ValidateEnvironment(*payload.Environment); err != nil {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid environment: %v", err))
			return
		}
	}

	updated, err := s.Store.UpdateDeployment(r.Context(), id, store.DeploymentPatch{
		Name:          payload.Name,
		Team:          payload.Team,
		Environment:   payload.Environment,
		ServiceType:   payload.ServiceType,
		Configuration: payload.Configuration,
		Status:        payload.Status,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "Deployment not found")
			return
		}
		if errors.Is(err, store.ErrDuplicate) {
			s.respondError(w, http.StatusBadRequest, "Deployment with this name already exists")
			return
		}
		s.Logger.Error("Failed to update deployment", "error", err, "id", id)
		s.respondError(w, http.StatusInternalServerError, "Failed to update deployment")
		return
	}

	s.respondJSON(w, http.StatusOK, updated)
}

// HandleDeleteDeployment handles DELETE /api/v1/deployments/{deploymentID}
func (s *Server) HandleDeleteDeployment(w http.ResponseWriter, r *http.Request) {
	id, ok := s.deploymentID(w, r)
	if !ok {
		return
	}

	if err := s.Store.DeleteDeployment(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "Deployment not found")
			return
		}
		s.Logger.Error("Failed to delete deployment", "error", err, "id", id)
		s.respondError(w, http.StatusInternalServerError, "Failed to delete deployment")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"message": "Deployment deleted successfully"})
}

// HandleTriggerDeployment handles POST /api/v1/deployments/{deploymentID}/trigger.
// The deployment is marked running; no pipeline execution is attached
// to deployment records yet.
func (s *Server) HandleTriggerDeployment(w http.ResponseWriter, r *http.Request) {
	id, ok := s.deploymentID(w, r)
	if !ok {
		return
	}

	d, err := s.Store.SetDeploymentStatus(r.Context(), id, "running")
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "Deployment not found")
			return
		}
		s.Logger.Error("Failed to trigger deployment", "error", err, "id", id)
		s.respondError(w, http.StatusInternalServerError, "Failed to trigger deployment")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"message":       "Deployment triggered successfully",
		"deployment_id": d.ID,
		"status":        d.Status,
	})
}

// deploymentID extracts and parses the deploymentID URL parameter.
func (s *Server) deploymentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "deploymentID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid deployment ID '%s'", raw))
		return 0, false
	}
	return id, true
}
