package platform

import (
	"platformd/internal/store"
)

// Template is a pre-configured starting point for a service. Creating
// a service from a template merges its defaults with the request.
type Template struct {
	Name                        string            `json:"name"`
	Description                 string            `json:"description"`
	ServiceType                 store.ServiceType `json:"service_type"`
	DefaultConfiguration        map[string]any    `json:"default_configuration"`
	DefaultInfrastructureConfig map[string]any    `json:"default_infrastructure_config"`
	DefaultMonitoringConfig     map[string]any    `json:"default_monitoring_config"`
	Tags                        []string          `json:"tags"`
}

// Templates returns the built-in service templates.
func Templates() []Template {
	return []Template{
		{
			Name:        "fastapi-api",
			Description: "FastAPI REST API service",
			ServiceType: store.ServiceTypeAPI,
			DefaultConfiguration: map[string]any{
				"framework":    "fastapi",
				"port":         8000,
				"health_check": "/health",
			},
			DefaultInfrastructureConfig: map[string]any{
				"cpu":         "500m",
				"memory":      "512Mi",
				"replicas":    3,
				"autoscaling": true,
			},
			DefaultMonitoringConfig: map[string]any{
				"metrics": []string{"http_requests", "response_time"},
				"alerts":  []string{"high_error_rate", "high_latency"},
			},
			Tags: []string{"api", "fastapi", "rest"},
		},
		{
			Name:        "react-web",
			Description: "React web application",
			ServiceType: store.ServiceTypeWeb,
			DefaultConfiguration: map[string]any{
				"framework":     "react",
				"build_command": "npm run build",
				"serve_command": "npm start",
			},
			DefaultInfrastructureConfig: map[string]any{
				"cpu":            "250m",
				"memory":         "256Mi",
				"replicas":       2,
				"static_serving": true,
			},
			DefaultMonitoringConfig: map[string]any{
				"metrics": []string{"page_load_time", "user_interactions"},
				"alerts":  []string{"high_load_time"},
			},
			Tags: []string{"web", "react", "frontend"},
		},
		{
			Name:        "celery-worker",
			Description: "Celery background worker",
			ServiceType: store.ServiceTypeWorker,
			DefaultConfiguration: map[string]any{
				"framework":   "celery",
				"broker":      "redis",
				"concurrency": 4,
			},
			DefaultInfrastructureConfig: map[string]any{
				"cpu":         "1000m",
				"memory":      "1Gi",
				"replicas":    2,
				"autoscaling": true,
			},
			DefaultMonitoringConfig: map[string]any{
				"metrics": []string{"task_queue_length", "task_processing_time"},
				"alerts":  []string{"queue_backlog", "worker_failures"},
			},
			Tags: []string{"worker", "celery", "background"},
		},
	}
}

// FindTemplate returns the built-in template with the given name, or
// false if none matches.
func FindTemplate(name string) (Template, bool) {
	for _, t := range Templates() {
		if t.Name == name {
			return t, true
		}
	}
	return Template{}, false
}

// Apply merges the template defaults into a service: the template's
// service type wins, request values override template configuration
// defaults, and tags are concatenated.
func (t Template) Apply(svc *store.Service) {
	svc.ServiceType = t.ServiceType
	svc.Configuration = mergeMaps(t.DefaultConfiguration, svc.Configuration)
	svc.InfrastructureConfig = mergeMaps(t.DefaultInfrastructureConfig, svc.InfrastructureConfig)
	svc.MonitoringConfig = mergeMaps(t.DefaultMonitoringConfig, svc.MonitoringConfig)
	svc.Tags = append(append([]string{}, svc.Tags...), t.Tags...)
}

// mergeMaps overlays override on top of base without mutating either.
func mergeMaps(base, override map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}
