package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"perfume-store/internal/domain"
	"perfume-store/internal/repository"

	"github.com/google/uuid"
)

// now is the service clock. Postgres keeps microseconds, so timestamps are truncated to
// compare equal after a round trip.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// AuditService exposes the administrative action log
type AuditService interface {
	ListForObject(ctx context.Context, objectType, objectID string) ([]domain.AuditEntry, error)
}

type auditService struct {
	store repository.Store
}

// NewAuditService creates a new instance of AuditService
func NewAuditService(store repository.Store) AuditService {
	return &auditService{store: store}
}

func (s *auditService) ListForObject(ctx context.Context, objectType, objectID string) ([]domain.AuditEntry, error) {
	entries, err := s.store.Audit().ListByObject(ctx, objectType, objectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}

// recordAudit writes an audit entry inside the caller's transaction.
func recordAudit(ctx context.Context, tx repository.Store, actor *uuid.UUID, action, objectType, objectID string, extra any) error {
	entry := &domain.AuditEntry{
		ID:         uuid.New(),
		ActorID:    actor,
		Action:     action,
		ObjectType: objectType,
		ObjectID:   objectID,
		CreatedAt:  now(),
	}
	if extra != nil {
		raw, err := json.Marshal(extra)
		if err != nil {
			return fmt.Errorf("failed to encode audit extra: %w", err)
		}
		entry.Extra = raw
	}
	if err := tx.Audit().Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}
