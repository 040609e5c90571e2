package store

import (
	"context"
	"database/sql"
	"fmt"
)

const deploymentColumns = `id, name, team, environment, service_type, configuration, status,
	created_at, updated_at`

// CreateDeployment inserts a new deployment record in status "pending".
// Returns ErrDuplicate if the name is already taken.
func (s *Store) CreateDeployment(ctx context.Context, d *Deployment) (*Deployment, error) {
	config, err := marshalJSON(d.Configuration)
	if err != nil {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO deployments
		(name, team, environment, service_type, configuration, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		d.Name,
		d.Team,
		d.Environment,
		d.ServiceType,
		config,
		"pending",
		nowUTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("deployment %q: %w", d.Name, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to insert deployment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return s.GetDeployment(ctx, id)
}

// GetDeployment returns a deployment by ID, or ErrNotFound.
func (s *Store) GetDeployment(ctx context.Context, id int64) (*Deployment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+deploymentColumns+` FROM deployments WHERE id = ?`, id)

	d, err := scanDeployment(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("deployment %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query deployment: %w", err)
	}

	return d, nil
}

// GetDeploymentByName returns a deployment by name, or ErrNotFound.
func (s *Store) GetDeploymentByName(ctx context.Context, name string) (*Deployment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+deploymentColumns+` FROM deployments WHERE name = ?`, name)

	d, err := scanDeployment(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("deployment %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query deployment: %w", err)
	}

	return d, nil
}

// ListDeployments returns deployments with offset/limit pagination,
// optionally filtered by team.
func (s *Store) ListDeployments(ctx context.Context, team string, offset, limit int) ([]Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments`
	args := []any{}
	if team != "" {
		query += ` WHERE team = ?`
		args = append(args, team)
	}
	query += ` ORDER BY id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query deployments: %w", err)
	}
	defer rows.Close()

	deployments := []Deployment{}
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deployment: %w", err)
		}
		deployments = append(deployments, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return deployments, nil
}

// UpdateDeployment applies a partial update. Only fields set on the
// patch are written.
func (s *Store) UpdateDeployment(ctx context.Context, id int64, patch DeploymentPatch) (*Deployment, error) {
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
	if patch.Environment != nil {
		appendSet("environment", *patch.Environment)
	}
	if patch.ServiceType != nil {
		appendSet("service_type", *patch.ServiceType)
	}
	if patch.Configuration != nil {
		config, err := marshalJSON(*patch.Configuration)
		if err != nil {
			return nil, err
		}
		appendSet("configuration", config)
	}
	if patch.Status != nil {
		appendSet("status", *patch.Status)
	}

	if len(sets) == 0 {
		return s.GetDeployment(ctx, id)
	}

	appendSet("updated_at", nowUTC())
	args = append(args, id)

	result, err := s.db.ExecContext(ctx,
		`UPDATE deployments SET `+joinSets(sets)+` WHERE id = ?`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("deployment rename: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to update deployment: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("deployment %d: %w", id, ErrNotFound)
	}

	return s.GetDeployment(ctx, id)
}

// SetDeploymentStatus updates only the status field.
func (s *Store) SetDeploymentStatus(ctx context.Context, id int64, status string) (*Deployment, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE deployments SET status = ?, updated_at = ? WHERE id = ?`,
		status, nowUTC(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update deployment status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("deployment %d: %w", id, ErrNotFound)
	}

	return s.GetDeployment(ctx, id)
}

// DeleteDeployment removes a deployment row. Returns ErrNotFound if absent.
func (s *Store) DeleteDeployment(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM deployments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete deployment: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("deployment %d: %w", id, ErrNotFound)
	}

	return nil
}

func scanDeployment(sc scanner) (*Deployment, error) {
	var d Deployment
	var config string
	var createdAt string
	var updatedAt sql.NullString

	err := sc.Scan(
		&d.ID,
		&d.Name,
		&d.Team,
		&d.Environment,
		&d.ServiceType,
		&config,
		&d.Status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if d.Configuration, err = unmarshalObject(config); err != nil {
		return nil, err
	}
	if d.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if d.UpdatedAt, err = parseNullTimestamp(updatedAt); err != nil {
		return nil, err
	}

	return &d, nil
}
