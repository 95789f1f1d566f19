package service

import (
	"context"
	"fmt"

	"perfume-store/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Provisioned reports what Provision created for a new user.
type Provisioned struct {
	UserID         uuid.UUID `json:"user_id"`
	CartID         uuid.UUID `json:"cart_id"`
	AccountCreated bool      `json:"loyalty_account_created"`
}

// AccountService prepares per-user records after registration
type AccountService interface {
	// Provision creates the user's cart and then the loyalty account. Calling it again
	// for the same user changes nothing.
	Provision(ctx context.Context, userID uuid.UUID) (*Provisioned, error)
}

type accountService struct {
	store  repository.Store
	logger *zap.Logger
}

// NewAccountService creates a new instance of AccountService
func NewAccountService(store repository.Store, logger *zap.Logger) AccountService {
	return &accountService{store: store, logger: logger}
}

func (s *accountService) Provision(ctx context.Context, userID uuid.UUID) (*Provisioned, error) {
	cart, err := s.store.Carts().GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to provision cart: %w", err)
	}

	created, err := s.store.Loyalty().CreateAccount(ctx, newAccount(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to provision loyalty account: %w", err)
	}

	if created {
		s.logger.Info("User provisioned",
			zap.String("user_id", userID.String()),
			zap.String("cart_id", cart.ID.String()),
		)
	}
	return &Provisioned{UserID: userID, CartID: cart.ID, AccountCreated: created}, nil
}
