package store

import (
	"context"
	"database/sql"
	"fmt"
)

const serviceColumns = `id, name, team, service_type, environment, description, tags,
	configuration, infrastructure_config, monitoring_config,
	status, cicd_status, infrastructure_status, monitoring_status,
	repository_url, deployment_url, monitoring_url, logs_url,
	created_at, updated_at`

// CreateService inserts a new service record. The service starts in
// status "pending" with all sub-statuses unset. Returns ErrDuplicate
// if a service with the same name already exists.
func (s *Store) CreateService(ctx context.Context, svc *Service) (*Service, error) {
	tags, err := marshalJSON(nonNilTags(svc.Tags))
	if err != nil {
		return nil, err
	}
	config, err := marshalJSON(svc.Configuration)
	if err != nil {
		return nil, err
	}
	infraConfig, err := marshalJSON(svc.InfrastructureConfig)
	if err != nil {
		return nil, err
	}
	monConfig, err := marshalJSON(svc.MonitoringConfig)
	if err != nil {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO services
		(name, team, service_type, environment, description, tags,
		 configuration, infrastructure_config, monitoring_config,
		 status, cicd_status, infrastructure_status, monitoring_status,
		 created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		svc.Name,
		svc.Team,
		string(svc.ServiceType),
		string(svc.Environment),
		svc.Description,
		tags,
		config,
		infraConfig,
		monConfig,
		string(StatusPending),
		CICDNotConfigured,
		InfraNotProvisioned,
		MonitoringNotConfigured,
		nowUTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("service %q: %w", svc.Name, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to insert service: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return s.GetService(ctx, id)
}

// GetService returns a service by ID, or ErrNotFound.
func (s *Store) GetService(ctx context.Context, id int64) (*Service, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE id = ?`, id)

	svc, err := scanService(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("service %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query service: %w", err)
	}

	return svc, nil
}

// GetServiceByName returns a service by its unique name, or ErrNotFound.
func (s *Store) GetServiceByName(ctx context.Context, name string) (*Service, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE name = ?`, name)

	svc, err := scanService(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("service %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query service: %w", err)
	}

	return svc, nil
}

// ListServices returns services with offset/limit pagination. If team
// is non-empty only that team's services are returned.
func (s *Store) ListServices(ctx context.Context, team string, offset, limit int) ([]Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services`
	args := []any{}
	if team != "" {
		query += ` WHERE team = ?`
		args = append(args, team)
	}
	query += ` ORDER BY id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query services: %w", err)
	}
	defer rows.Close()

	services := []Service{}
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, *svc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return services, nil
}

// UpdateService applies a partial update. Only fields set on the patch
// are written. Returns ErrNotFound if the service does not exist and
// ErrDuplicate if a rename collides with an existing name.
func (s *Store) UpdateService(ctx context.Context, id int64, patch ServicePatch) (*Service, error) {
	sets := []string{}
	args := []any{}

	appendSet := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if patch.Name != nil {
		appendSet("name", *patch.Name)
	}
	if patch.Team != nil {
		appendSet("team", *patch.Team)
	}
	if patch.ServiceType != nil {
		appendSet("service_type", string(*patch.ServiceType))
	}
	if patch.Environment != nil {
		appendSet("environment", string(*patch.Environment))
	}
	if patch.Description != nil {
		appendSet("description", *patch.Description)
	}
	if patch.Tags != nil {
		tags, err := marshalJSON(nonNilTags(*patch.Tags))
		if err != nil {
			return nil, err
		}
		appendSet("tags", tags)
	}
	if patch.Configuration != nil {
		config, err := marshalJSON(*patch.Configuration)
		if err != nil {
			return nil, err
		}
		appendSet("configuration", config)
	}
	if patch.InfrastructureConfig != nil {
		config, err := marshalJSON(*patch.InfrastructureConfig)
		if err != nil {
			return nil, err
		}
		appendSet("infrastructure_config", config)
	}
	if patch.MonitoringConfig != nil {
		config, err := marshalJSON(*patch.MonitoringConfig)
		if err != nil {
			return nil, err
		}
		appendSet("monitoring_config", config)
	}

	if len(sets) == 0 {
		return s.GetService(ctx, id)
	}

	appendSet("updated_at", nowUTC())
	args = append(args, id)

	result, err := s.db.ExecContext(ctx,
		`UPDATE services SET `+joinSets(sets)+` WHERE id = ?`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("service rename: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to update service: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("service %d: %w", id, ErrNotFound)
	}

	return s.GetService(ctx, id)
}

// DeleteService removes a service row. Returns ErrNotFound if absent.
func (s *Store) DeleteService(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM services WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete service: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("service %d: %w", id, ErrNotFound)
	}

	return nil
}

// SetServiceStatus updates only the overall lifecycle status.
func (s *Store) SetServiceStatus(ctx context.Context, id int64, status ServiceStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE services SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), nowUTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update service status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("service %d: %w", id, ErrNotFound)
	}

	return nil
}

// SetCICDResult records the outcome of the CI/CD provisioning sub-step.
// On success the workflow details are merged into the service
// configuration under "github_actions_workflow".
func (s *Store) SetCICDResult(ctx context.Context, id int64, status, repositoryURL string, workflow map[string]any) error {
	if workflow != nil {
		if err := s.mergeJSONColumn(ctx, id, "configuration", "github_actions_workflow", workflow); err != nil {
			return err
		}
	}

	args := []any{status}
	query := `UPDATE services SET cicd_status = ?`
	if repositoryURL != "" {
		query += `, repository_url = ?`
		args = append(args, repositoryURL)
	}
	query += `, updated_at = ? WHERE id = ?`
	args = append(args, nowUTC(), id)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to record cicd result: %w", err)
	}
	return nil
}

// SetInfrastructureResult records the outcome of the infrastructure
// provisioning sub-step.
func (s *Store) SetInfrastructureResult(ctx context.Context, id int64, status, deploymentURL string, outputs map[string]any) error {
	for key, value := range outputs {
		if err := s.mergeJSONColumn(ctx, id, "infrastructure_config", key, value); err != nil {
			return err
		}
	}

	args := []any{status}
	query := `UPDATE services SET infrastructure_status = ?`
	if deploymentURL != "" {
		query += `, deployment_url = ?`
		args = append(args, deploymentURL)
	}
	query += `, updated_at = ? WHERE id = ?`
	args = append(args, nowUTC(), id)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to record infrastructure result: %w", err)
	}
	return nil
}

// SetMonitoringResult records the outcome of the monitoring sub-step.
func (s *Store) SetMonitoringResult(ctx context.Context, id int64, status, monitoringURL, logsURL string, details map[string]any) error {
	for key, value := range details {
		if err := s.mergeJSONColumn(ctx, id, "monitoring_config", key, value); err != nil {
			return err
		}
	}

	args := []any{status}
	query := `UPDATE services SET monitoring_status = ?`
	if monitoringURL != "" {
		query += `, monitoring_url = ?`
		args = append(args, monitoringURL)
	}
	if logsURL != "" {
		query += `, logs_url = ?`
		args = append(args, logsURL)
	}
	query += `, updated_at = ? WHERE id = ?`
	args = append(args, nowUTC(), id)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to record monitoring result: %w", err)
	}
	return nil
}

// mergeJSONColumn reads a JSON object column, sets key to value, and
// writes it back. The single-connection pool serializes the
// read-modify-write.
func (s *Store) mergeJSONColumn(ctx context.Context, id int64, column, key string, value any) error {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT `+column+` FROM services WHERE id = ?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return fmt.Errorf("service %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", column, err)
	}

	obj, err := unmarshalObject(raw)
	if err != nil {
		return err
	}
	obj[key] = value

	encoded, err := marshalJSON(obj)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE services SET `+column+` = ? WHERE id = ?`, encoded, id); err != nil {
		return fmt.Errorf("failed to write %s: %w", column, err)
	}
	return nil
}

func scanService(sc scanner) (*Service, error) {
	var svc Service
	var serviceType, environment, status string
	var description sql.NullString
	var tags, config, infraConfig, monConfig string
	var repoURL, deployURL, monURL, logsURL sql.NullString
	var createdAt string
	var updatedAt sql.NullString

	err := sc.Scan(
		&svc.ID,
		&svc.Name,
		&svc.Team,
		&serviceType,
		&environment,
		&description,
		&tags,
		&config,
		&infraConfig,
		&monConfig,
		&status,
		&svc.CICDStatus,
		&svc.InfrastructureStatus,
		&svc.MonitoringStatus,
		&repoURL,
		&deployURL,
		&monURL,
		&logsURL,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	svc.ServiceType = ServiceType(serviceType)
	svc.Environment = Environment(environment)
	svc.Status = ServiceStatus(status)
	if description.Valid {
		svc.Description = description.String
	}

	if svc.Tags, err = unmarshalTags(tags); err != nil {
		return nil, err
	}
	if svc.Configuration, err = unmarshalObject(config); err != nil {
		return nil, err
	}
	if svc.InfrastructureConfig, err = unmarshalObject(infraConfig); err != nil {
		return nil, err
	}
	if svc.MonitoringConfig, err = unmarshalObject(monConfig); err != nil {
		return nil, err
	}

	svc.RepositoryURL = nullStringPtr(repoURL)
	svc.DeploymentURL = nullStringPtr(deployURL)
	svc.MonitoringURL = nullStringPtr(monURL)
	svc.LogsURL = nullStringPtr(logsURL)

	if svc.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if svc.UpdatedAt, err = parseNullTimestamp(updatedAt); err != nil {
		return nil, err
	}

	return &svc, nil
}

func nullStringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func joinSets(sets []string) string {
	out := sets[0]
	for _, s := range sets[1:] {
		out += ", " + s
	}
	return out
}
