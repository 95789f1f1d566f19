package transport

import (
	"net/http"
	"strconv"

	"perfume-store/internal/domain"
	"perfume-store/internal/middleware"
	"perfume-store/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultTransactionLimit = 50

// LoyaltyResponse is the caller's points balance with recent history
type LoyaltyResponse struct {
	*domain.LoyaltyAccount
	Transactions []domain.LoyaltyTransaction `json:"transactions"`
}

// AccountHandler handles account provisioning and the loyalty ledger
type AccountHandler struct {
	accounts service.AccountService
	loyalty  service.LoyaltyService
	logger   *zap.Logger
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(accounts service.AccountService, loyalty service.LoyaltyService, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, loyalty: loyalty, logger: logger}
}

// RegisterRoutes registers the account routes on the /api/v1 router
func (h *AccountHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/account/provision", h.Provision)
		r.Get("/loyalty", h.GetLoyalty)

		r.Group(func(r chi.Router) {
			r.Use(adminMiddleware)
			r.Get("/admin/loyalty/{userID}", h.GetUserLoyalty)
			r.Post("/admin/loyalty/{userID}/adjust", h.Adjust)
		})
	})
}

// Provision handles POST /api/v1/account/provision. Clients call it after registration;
// repeated calls are harmless.
func (h *AccountHandler) Provision(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	result, err := h.accounts.Provision(r.Context(), p.UserID)
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}

	status := http.StatusOK
	if result.AccountCreated {
		status = http.StatusCreated
	}
	middleware.RespondWithJSON(w, status, result)
}

// GetLoyalty handles GET /api/v1/loyalty?limit=
func (h *AccountHandler) GetLoyalty(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	h.respondLoyalty(w, r, p.UserID)
}

// GetUserLoyalty handles GET /api/v1/admin/loyalty/{userID}
func (h *AccountHandler) GetUserLoyalty(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	h.respondLoyalty(w, r, userID)
}

func (h *AccountHandler) respondLoyalty(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > maxPageSize {
		limit = defaultTransactionLimit
	}

	account, err := h.loyalty.GetAccount(r.Context(), userID)
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	txs, err := h.loyalty.Transactions(r.Context(), userID, limit)
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	if txs == nil {
		txs = []domain.LoyaltyTransaction{}
	}
	middleware.RespondWithJSON(w, http.StatusOK, LoyaltyResponse{LoyaltyAccount: account, Transactions: txs})
}

// Adjust handles POST /api/v1/admin/loyalty/{userID}/adjust
func (h *AccountHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	var req service.AdjustInput
	if !decode(w, r, h.logger, &req) {
		return
	}
	req.UserID = userID
	req.Actor = actor(r)

	account, err := h.loyalty.Adjust(r.Context(), req)
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, account)
}
