package sync

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fusionbridge/fusion-bridge-core/internal/drivers/piko"
)

// dbExecutor is the subset of sql.DB used by the piko server store.
type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// pikoServerStore tracks the media server inventory per Piko connector.
// Cameras reference their server by vendor ID; the store resolves those
// IDs to names for display.
type pikoServerStore struct {
	db dbExecutor
}

func (p *pikoServerStore) upsert(ctx context.Context, connectorID string, srv piko.Server) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO piko_servers (id, connector_id, server_id, name, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (connector_id, server_id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		uuid.New().String(),
		connectorID,
		srv.ID,
		srv.Name,
		srv.Status,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("upserting piko server %s: %w", srv.ID, err)
	}
	return nil
}

func (p *pikoServerStore) deleteStale(ctx context.Context, connectorID string, keep []string) error {
	query := `DELETE FROM piko_servers WHERE connector_id = ?`
	args := []any{connectorID}

	if len(keep) > 0 {
		placeholders := strings.Repeat("?,", len(keep))
		query += ` AND server_id NOT IN (` + placeholders[:len(placeholders)-1] + `)`
		for _, id := range keep {
			args = append(args, id)
		}
	}

	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("removing stale piko servers: %w", err)
	}
	return nil
}

// ServerName resolves a vendor server ID to its name for display.
// Returns the ID itself when unknown.
func (s *Service) ServerName(ctx context.Context, connectorID, serverID string) string {
	var name string
	err := s.pikoServers.db.QueryRowContext(ctx,
		`SELECT name FROM piko_servers WHERE connector_id = ? AND server_id = ?`,
		connectorID, serverID,
	).Scan(&name)
	if err != nil {
		return serverID
	}
	return name
}
