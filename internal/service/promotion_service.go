package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"perfume-store/internal/domain"
	"perfume-store/internal/notify"
	"perfume-store/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PromotionInput is the payload for creating or updating a promotion
type PromotionInput struct {
	Title              string               `json:"title" validate:"required,max=255"`
	Description        string               `json:"description"`
	Type               domain.PromotionType `json:"type" validate:"required,oneof=brand category manual all"`
	Slot               string               `json:"slot" validate:"max=50"`
	Priority           int                  `json:"priority"`
	Active             bool                 `json:"active"`
	StartAt            *time.Time           `json:"start_at"`
	EndAt              *time.Time           `json:"end_at"`
	DiscountPercentage int                  `json:"discount_percentage" validate:"gte=0,lte=100"`
	DiscountPrice      decimal.NullDecimal  `json:"discount_price"`
	BrandID            *uuid.UUID           `json:"brand_id"`
	CategoryID         *uuid.UUID           `json:"category_id"`
	ProductIDs         []uuid.UUID          `json:"product_ids"`
}

func (in PromotionInput) applyTo(p *domain.Promotion) {
	p.Title = strings.TrimSpace(in.Title)
	p.Description = in.Description
	p.Type = in.Type
	p.Slot = in.Slot
	p.Priority = in.Priority
	p.StartAt = in.StartAt
	p.EndAt = in.EndAt
	p.DiscountPercentage = in.DiscountPercentage
	p.DiscountPrice = in.DiscountPrice
	p.BrandID = in.BrandID
	p.CategoryID = in.CategoryID
	p.ProductIDs = nil
	if in.Type == domain.PromotionTypeManual {
		p.ProductIDs = in.ProductIDs
	}
}

// PromotionService defines the interface for bulk discount management
type PromotionService interface {
	Create(ctx context.Context, input PromotionInput, actor *uuid.UUID) (*domain.Promotion, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Promotion, error)
	List(ctx context.Context, activeOnly bool) ([]*domain.Promotion, error)
	// Update replaces the definition. An active promotion is cleared from its current
	// targets first; it is then re-applied when input.Active is set and left inactive
	// otherwise.
	Update(ctx context.Context, id uuid.UUID, input PromotionInput, actor *uuid.UUID) (*domain.Promotion, error)
	// Apply writes the promotion's discount onto every target and marks it active.
	Apply(ctx context.Context, id uuid.UUID, actor *uuid.UUID) (*domain.ApplyResult, error)
	// Clear resets the discount of the products this promotion owns and deactivates it.
	Clear(ctx context.Context, id uuid.UUID, actor *uuid.UUID) (*domain.ClearResult, error)
	ResolveTargets(ctx context.Context, id uuid.UUID) ([]*domain.Product, error)
}

type promotionService struct {
	store    repository.Store
	notifier notify.Notifier
	logger   *zap.Logger
}

// NewPromotionService creates a new instance of PromotionService
func NewPromotionService(store repository.Store, notifier notify.Notifier, logger *zap.Logger) PromotionService {
	return &promotionService{store: store, notifier: notifier, logger: logger}
}

func (s *promotionService) Create(ctx context.Context, input PromotionInput, actor *uuid.UUID) (*domain.Promotion, error) {
	ts := now()
	promo := &domain.Promotion{ID: uuid.New(), CreatedAt: ts, UpdatedAt: ts}
	input.applyTo(promo)
	if err := promo.Validate(); err != nil {
		return nil, err
	}

	var result *domain.ApplyResult
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Promotions().Create(ctx, promo); err != nil {
			return err
		}
		if err := recordAudit(ctx, tx, actor, domain.AuditPromotionCreate, "promotion", promo.ID.String(), input); err != nil {
			return err
		}
		if !input.Active {
			return nil
		}
		var err error
		result, err = s.applyLocked(ctx, tx, promo, actor)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create promotion: %w", err)
	}

	if result != nil {
		s.announceApplied(ctx, promo, result)
	}
	return promo, nil
}

func (s *promotionService) Get(ctx context.Context, id uuid.UUID) (*domain.Promotion, error) {
	return s.store.Promotions().FindByID(ctx, id)
}

func (s *promotionService) List(ctx context.Context, activeOnly bool) ([]*domain.Promotion, error) {
	promos, err := s.store.Promotions().List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list promotions: %w", err)
	}
	return promos, nil
}

func (s *promotionService) Update(ctx context.Context, id uuid.UUID, input PromotionInput, actor *uuid.UUID) (*domain.Promotion, error) {
	var (
		promo  *domain.Promotion
		result *domain.ApplyResult
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		p, err := tx.Promotions().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		wasActive := p.Active

		input.applyTo(p)
		if err := p.Validate(); err != nil {
			return err
		}

		if wasActive {
			cleared, err := tx.Products().ClearDiscountBySource(ctx, p.ID)
			if err != nil {
				return err
			}
			s.logger.Info("Promotion cleared before update",
				zap.String("promotion_id", p.ID.String()),
				zap.Int("cleared", cleared),
			)
		}

		p.UpdatedAt = now()
		if err := tx.Promotions().Update(ctx, p); err != nil {
			return err
		}
		if err := recordAudit(ctx, tx, actor, domain.AuditPromotionUpdate, "promotion", p.ID.String(), input); err != nil {
			return err
		}

		switch {
		case input.Active:
			if result, err = s.applyLocked(ctx, tx, p, actor); err != nil {
				return err
			}
		case wasActive:
			if err := tx.Promotions().SetActive(ctx, p.ID, false); err != nil {
				return err
			}
			p.Active = false
		}
		promo = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update promotion: %w", err)
	}

	if result != nil {
		s.announceApplied(ctx, promo, result)
	}
	return promo, nil
}

func (s *promotionService) Apply(ctx context.Context, id uuid.UUID, actor *uuid.UUID) (*domain.ApplyResult, error) {
	var (
		promo  *domain.Promotion
		result *domain.ApplyResult
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		p, err := tx.Promotions().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := p.Validate(); err != nil {
			return err
		}
		// rows owned from a previous apply may no longer be targets
		if _, err := tx.Products().ClearDiscountBySource(ctx, p.ID); err != nil {
			return err
		}
		promo = p
		result, err = s.applyLocked(ctx, tx, p, actor)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply promotion: %w", err)
	}

	s.announceApplied(ctx, promo, result)
	return result, nil
}

// applyLocked writes the promotion onto its targets inside tx. Targets whose base price
// does not exceed the promotion's fixed price are skipped.
func (s *promotionService) applyLocked(ctx context.Context, tx repository.Store, promo *domain.Promotion, actor *uuid.UUID) (*domain.ApplyResult, error) {
	targets, err := tx.Products().LockPromotionTargets(ctx, promo)
	if err != nil {
		return nil, err
	}

	discount := promo.DiscountAt(now())
	result := &domain.ApplyResult{PromotionID: promo.ID}
	for _, product := range targets {
		if promo.DiscountPrice.Valid && product.BasePrice.LessThanOrEqual(promo.DiscountPrice.Decimal) {
			result.Skipped = append(result.Skipped, product.ID)
			continue
		}
		if err := tx.Products().UpdateDiscount(ctx, product.ID, discount, &promo.ID); err != nil {
			return nil, err
		}
		result.Applied++
	}

	if err := tx.Promotions().SetActive(ctx, promo.ID, true); err != nil {
		return nil, err
	}
	promo.Active = true

	if err := recordAudit(ctx, tx, actor, domain.AuditPromotionApply, "promotion", promo.ID.String(), result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *promotionService) Clear(ctx context.Context, id uuid.UUID, actor *uuid.UUID) (*domain.ClearResult, error) {
	result := &domain.ClearResult{PromotionID: id}
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Promotions().FindByIDForUpdate(ctx, id); err != nil {
			return err
		}
		cleared, err := tx.Products().ClearDiscountBySource(ctx, id)
		if err != nil {
			return err
		}
		result.Cleared = cleared
		if err := tx.Promotions().SetActive(ctx, id, false); err != nil {
			return err
		}
		return recordAudit(ctx, tx, actor, domain.AuditPromotionClear, "promotion", id.String(), result)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to clear promotion: %w", err)
	}

	s.logger.Info("Promotion cleared",
		zap.String("promotion_id", id.String()),
		zap.Int("cleared", result.Cleared),
	)
	s.notifier.Notify(ctx, notify.Event{
		Type:       notify.EventPromotionCleared,
		Payload:    map[string]any{"promotion_id": id.String(), "cleared": result.Cleared},
		OccurredAt: time.Now().UTC(),
	})
	return result, nil
}

func (s *promotionService) ResolveTargets(ctx context.Context, id uuid.UUID) ([]*domain.Product, error) {
	promo, err := s.store.Promotions().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	targets, err := s.store.Products().FindPromotionTargets(ctx, promo)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve promotion targets: %w", err)
	}
	return targets, nil
}

func (s *promotionService) announceApplied(ctx context.Context, promo *domain.Promotion, result *domain.ApplyResult) {
	s.logger.Info("Promotion applied",
		zap.String("promotion_id", promo.ID.String()),
		zap.String("type", string(promo.Type)),
		zap.Int("applied", result.Applied),
		zap.Int("skipped", len(result.Skipped)),
	)
	s.notifier.Notify(ctx, notify.Event{
		Type: notify.EventPromotionApplied,
		Payload: map[string]any{
			"promotion_id": promo.ID.String(),
			"title":        promo.Title,
			"applied":      result.Applied,
		},
		OccurredAt: time.Now().UTC(),
	})
}
