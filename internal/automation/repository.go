package automation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for automation persistence.
type Repository interface {
	// GetByID retrieves an automation by its unique identifier.
	GetByID(ctx context.Context, id string) (*Automation, error)

	// List retrieves all automations for an organisation.
	List(ctx context.Context, orgID string) ([]Automation, error)

	// ListEnabled retrieves all enabled automations across
	// organisations, for the engine's matching loop.
	ListEnabled(ctx context.Context) ([]Automation, error)

	// Create inserts a new automation.
	Create(ctx context.Context, a *Automation) error

	// Update modifies an existing automation.
	Update(ctx context.Context, a *Automation) error

	// Delete removes an automation by ID.
	Delete(ctx context.Context, id string) error

	// RecordExecution inserts an execution record.
	RecordExecution(ctx context.Context, e *Execution) error

	// ListExecutions retrieves recent executions of one automation,
	// newest first.
	ListExecutions(ctx context.Context, automationID string, limit int) ([]Execution, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const automationColumns = `id, organization_id, name, enabled, trigger_config, actions, created_at, updated_at`

// GetByID retrieves an automation by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Automation, error) {
	query := `SELECT ` + automationColumns + ` FROM automations WHERE id = ?`

	a, err := scanAutomation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying automation by id: %w", err)
	}
	return a, nil
}

// List retrieves all automations for an organisation, ordered by name.
func (r *SQLiteRepository) List(ctx context.Context, orgID string) ([]Automation, error) {
	query := `SELECT ` + automationColumns + ` FROM automations WHERE organization_id = ? ORDER BY name`
	return r.queryAutomations(ctx, query, orgID)
}

// ListEnabled retrieves all enabled automations across organisations.
func (r *SQLiteRepository) ListEnabled(ctx context.Context) ([]Automation, error) {
	query := `SELECT ` + automationColumns + ` FROM automations WHERE enabled = 1 ORDER BY name`
	return r.queryAutomations(ctx, query)
}

// Create inserts a new automation.
func (r *SQLiteRepository) Create(ctx context.Context, a *Automation) error {
	triggerJSON, actionsJSON, err := marshalAutomation(a)
	if err != nil {
		return err
	}

	if a.ID == "" {
		a.ID = GenerateID()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO automations (id, organization_id, name, enabled, trigger_config, actions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.OrganizationID,
		a.Name,
		boolToInt(a.Enabled),
		triggerJSON,
		actionsJSON,
		a.CreatedAt.Format(time.RFC3339),
		a.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting automation: %w", err)
	}
	return nil
}

// Update modifies an existing automation.
func (r *SQLiteRepository) Update(ctx context.Context, a *Automation) error {
	triggerJSON, actionsJSON, err := marshalAutomation(a)
	if err != nil {
		return err
	}

	a.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE automations SET name = ?, enabled = ?, trigger_config = ?, actions = ?, updated_at = ?
		WHERE id = ?`,
		a.Name,
		boolToInt(a.Enabled),
		triggerJSON,
		actionsJSON,
		a.UpdatedAt.Format(time.RFC3339),
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("updating automation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an automation by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM automations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting automation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordExecution inserts an execution record.
func (r *SQLiteRepository) RecordExecution(ctx context.Context, e *Execution) error {
	var failuresJSON sql.NullString
	if len(e.Failures) > 0 {
		data, err := json.Marshal(e.Failures)
		if err != nil {
			return fmt.Errorf("marshalling execution failures: %w", err)
		}
		failuresJSON = sql.NullString{String: string(data), Valid: true}
	}

	var completedAt sql.NullString
	if e.CompletedAt != nil {
		completedAt = sql.NullString{String: e.CompletedAt.UTC().Format(time.RFC3339), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO automation_executions (id, automation_id, event_id, status, failures, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.AutomationID,
		e.EventID,
		string(e.Status),
		failuresJSON,
		e.StartedAt.UTC().Format(time.RFC3339),
		completedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting execution: %w", err)
	}
	return nil
}

// ListExecutions retrieves recent executions of one automation.
func (r *SQLiteRepository) ListExecutions(ctx context.Context, automationID string, limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, automation_id, event_id, status, failures, started_at, completed_at
		FROM automation_executions
		WHERE automation_id = ?
		ORDER BY started_at DESC
		LIMIT ?`,
		automationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying executions: %w", err)
	}
	defer rows.Close()

	var executions []Execution
	for rows.Next() {
		var e Execution
		var status string
		var failuresJSON, completedAt sql.NullString
		var startedAt string

		if err := rows.Scan(&e.ID, &e.AutomationID, &e.EventID, &status, &failuresJSON, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scanning execution: %w", err)
		}

		e.Status = ExecutionStatus(status)

		if failuresJSON.Valid && failuresJSON.String != "" {
			if err := json.Unmarshal([]byte(failuresJSON.String), &e.Failures); err != nil {
				return nil, fmt.Errorf("unmarshalling execution failures: %w", err)
			}
		}

		e.StartedAt, err = time.Parse(time.RFC3339, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing started_at: %w", err)
		}
		if completedAt.Valid {
			t, err := time.Parse(time.RFC3339, completedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parsing completed_at: %w", err)
			}
			e.CompletedAt = &t
		}

		executions = append(executions, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating executions: %w", err)
	}
	return executions, nil
}

func (r *SQLiteRepository) queryAutomations(ctx context.Context, query string, args ...any) ([]Automation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying automations: %w", err)
	}
	defer rows.Close()

	var automations []Automation
	for rows.Next() {
		a, err := scanAutomation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning automation: %w", err)
		}
		automations = append(automations, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating automations: %w", err)
	}
	return automations, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAutomation(scanner rowScanner) (*Automation, error) {
	var a Automation
	var enabled int
	var triggerJSON, actionsJSON string
	var createdAt, updatedAt string

	err := scanner.Scan(&a.ID, &a.OrganizationID, &a.Name, &enabled, &triggerJSON, &actionsJSON, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	a.Enabled = enabled != 0

	if err := json.Unmarshal([]byte(triggerJSON), &a.Trigger); err != nil {
		return nil, fmt.Errorf("unmarshalling trigger: %w", err)
	}
	if err := json.Unmarshal([]byte(actionsJSON), &a.Actions); err != nil {
		return nil, fmt.Errorf("unmarshalling actions: %w", err)
	}

	var parseErr error
	a.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	a.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}
	return &a, nil
}

func marshalAutomation(a *Automation) (triggerJSON, actionsJSON string, err error) {
	trigger, err := json.Marshal(a.Trigger)
	if err != nil {
		return "", "", fmt.Errorf("marshalling trigger: %w", err)
	}
	actions, err := json.Marshal(a.Actions)
	if err != nil {
		return "", "", fmt.Errorf("marshalling actions: %w", err)
	}
	return string(trigger), string(actions), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
