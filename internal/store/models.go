package store

import "time"

// ServiceType classifies what kind of workload a service runs.
type ServiceType string

const (
	ServiceTypeAPI      ServiceType = "api"
	ServiceTypeWeb      ServiceType = "web"
	ServiceTypeWorker   ServiceType = "worker"
	ServiceTypeDatabase ServiceType = "database"
	ServiceTypeCache    ServiceType = "cache"
)

// Environment is the target environment for a service or deployment.
type Environment string

const (
	EnvDev     Environment = "dev"
	EnvStaging Environment = "staging"
	EnvProd    Environment = "prod"
)

// ServiceStatus tracks the overall lifecycle of a service.
type ServiceStatus string

const (
	StatusPending      ServiceStatus = "pending"
	StatusProvisioning ServiceStatus = "provisioning"
	StatusRunning      ServiceStatus = "running"
	StatusFailed       ServiceStatus = "failed"
	StatusDeprecated   ServiceStatus = "deprecated"
)

// Sub-status values written by the provisioning sub-steps.
const (
	CICDNotConfigured = "not_configured"
	CICDConfigured    = "configured"
	CICDFailed        = "failed"

	InfraNotProvisioned = "not_provisioned"
	InfraProvisioned    = "provisioned"
	InfraFailed         = "failed"

	MonitoringNotConfigured = "not_configured"
	MonitoringConfigured    = "configured"
	MonitoringFailed        = "failed"
)

// Service is a managed unit of deployable software with CI/CD,
// infrastructure, and monitoring tracked independently.
type Service struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Team        string      `json:"team"`
	ServiceType ServiceType `json:"service_type"`
	Environment Environment `json:"environment"`
	Description string      `json:"description,omitempty"`
	Tags        []string    `json:"tags"`

	Configuration        map[string]any `json:"configuration"`
	InfrastructureConfig map[string]any `json:"infrastructure_config"`
	MonitoringConfig     map[string]any `json:"monitoring_config"`

	Status               ServiceStatus `json:"status"`
	CICDStatus           string        `json:"cicd_status"`
	InfrastructureStatus string        `json:"infrastructure_status"`
	MonitoringStatus     string        `json:"monitoring_status"`

	RepositoryURL *string `json:"repository_url,omitempty"`
	DeploymentURL *string `json:"deployment_url,omitempty"`
	MonitoringURL *string `json:"monitoring_url,omitempty"`
	LogsURL       *string `json:"logs_url,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// ServicePatch holds a partial update for a service. Only non-nil
// fields are applied.
type ServicePatch struct {
	Name                 *string
	Team                 *string
	ServiceType          *ServiceType
	Environment          *Environment
	Description          *string
	Tags                 *[]string
	Configuration        *map[string]any
	InfrastructureConfig *map[string]any
	MonitoringConfig     *map[string]any
}

// Deployment is a standalone deployment configuration record. Its
// status is a plain string: pending, running, completed, failed.
type Deployment struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	Team          string         `json:"team"`
	Environment   string         `json:"environment"`
	ServiceType   string         `json:"service_type"`
	Configuration map[string]any `json:"configuration"`
	Status        string         `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     *time.Time     `json:"updated_at,omitempty"`
}

// DeploymentPatch holds a partial update for a deployment.
type DeploymentPatch struct {
	Name          *string
	Team          *string
	Environment   *string
	ServiceType   *string
	Configuration *map[string]any
	Status        *string
}

// ValidServiceType reports whether t is one of the supported service types.
func ValidServiceType(t ServiceType) bool {
	switch t {
	case ServiceTypeAPI, ServiceTypeWeb, ServiceTypeWorker, ServiceTypeDatabase, ServiceTypeCache:
		return true
	}
	return false
}

// ValidEnvironment reports whether e is a known environment.
func ValidEnvironment(e Environment) bool {
	switch e {
	case EnvDev, EnvStaging, EnvProd:
		return true
	}
	return false
}
