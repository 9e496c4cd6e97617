package audit

import (
	"context"
	"database/sql"
	"errors"
)

// Repository writes the admin activity log to Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs an audit repository.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db}
}

// Log writes an audit entry.
func (r *Repository) Log(ctx context.Context, entry Entry) error {
	if r == nil || r.db == nil {
		return errors.New("audit repo: nil db")
	}
	entry = prepare(entry)
	var details any
	if len(entry.Details) > 0 {
		details = []byte(entry.Details)
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO admin_activity_logs (
	id, actor_id, actor_role, action, resource_type, resource_id,
	details, payload_digest, ip, user_agent, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)`, entry.ID, entry.ActorID, entry.ActorRole, entry.Action, entry.ResourceType, entry.ResourceID,
		details, entry.PayloadDigest, entry.IP, entry.UserAgent, entry.CreatedAt)
	return err
}
