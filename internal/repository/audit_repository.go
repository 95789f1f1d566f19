package repository

import (
	"context"
	"fmt"

	"perfume-store/internal/domain"

	"github.com/google/uuid"
)

// AuditRepository records administrative actions
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditEntry) error
	ListByObject(ctx context.Context, objectType, objectID string) ([]domain.AuditEntry, error)
}

type auditRepository struct {
	db DBTX
}

// NewAuditRepository creates a new instance of AuditRepository
func NewAuditRepository(db DBTX) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, entry *domain.AuditEntry) error {
	var extra any
	if len(entry.Extra) > 0 {
		extra = []byte(entry.Extra)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_entries (id, actor_id, action, object_type, object_id, extra, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		entry.ID,
		nullableUUID(entry.ActorID),
		entry.Action,
		entry.ObjectType,
		entry.ObjectID,
		extra,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	return nil
}

func (r *auditRepository) ListByObject(ctx context.Context, objectType, objectID string) ([]domain.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, actor_id, action, object_type, object_id, extra, created_at
		FROM audit_entries
		WHERE object_type = $1 AND object_id = $2
		ORDER BY created_at ASC, id
	`, objectType, objectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.AuditEntry{}
	for rows.Next() {
		var (
			entry domain.AuditEntry
			extra []byte
			actor uuid.NullUUID
		)
		if err := rows.Scan(&entry.ID, &actor, &entry.Action, &entry.ObjectType, &entry.ObjectID, &extra, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry.ActorID = uuidPtr(actor)
		entry.Extra = extra
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}
