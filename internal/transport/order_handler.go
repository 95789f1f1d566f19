package transport

import (
	"errors"
	"net/http"
	"time"

	"perfume-store/internal/domain"
	"perfume-store/internal/middleware"
	"perfume-store/internal/payment"
	"perfume-store/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StatusRequest is an administrative status change. ExpectedUpdatedAt is the updated_at
// the administrator last saw.
type StatusRequest struct {
	Status            domain.OrderStatus `json:"status" validate:"required,oneof=pending paid processing shipped delivered cancelled"`
	ExpectedUpdatedAt *time.Time         `json:"expected_updated_at"`
}

// ShipOrderRequest names the delivery provider that takes the parcel
type ShipOrderRequest struct {
	Provider string `json:"provider" validate:"required"`
}

// EditOrderRequest changes administrative fields. Omitted fields are left alone.
type EditOrderRequest struct {
	DeliveryCost      *decimal.Decimal `json:"delivery_cost"`
	TrackingNumber    *string          `json:"tracking_number" validate:"omitempty,max=100"`
	AdminNotes        *string          `json:"admin_notes" validate:"omitempty,max=2000"`
	ExpectedUpdatedAt *time.Time       `json:"expected_updated_at"`
}

// OrderHandler handles order endpoints for customers and administrators, and payment
// provider callbacks
type OrderHandler struct {
	orders   service.OrderService
	payments *payment.Registry
	logger   *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders service.OrderService, payments *payment.Registry, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, payments: payments, logger: logger}
}

// RegisterRoutes registers the order routes on the /api/v1 router
func (h *OrderHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	// Providers authenticate their own callbacks.
	r.Post("/payments/{provider}/webhook", h.PaymentWebhook)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/orders", h.ListMine)
		r.Get("/orders/{orderID}", h.GetMine)
		r.Post("/orders/{orderID}/payment", h.StartPayment)

		r.Group(func(r chi.Router) {
			r.Use(adminMiddleware)
			r.Get("/admin/dashboard", h.Dashboard)
			r.Get("/admin/orders/{orderID}", h.Get)
			r.Patch("/admin/orders/{orderID}", h.Edit)
			r.Put("/admin/orders/{orderID}/status", h.UpdateStatus)
			r.Post("/admin/orders/{orderID}/ship", h.Ship)
		})
	})
}

// ListMine handles GET /api/v1/orders?status=&page=&page_size=
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var status *domain.OrderStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := domain.OrderStatus(raw)
		status = &s
	}
	page, pageSize := pagination(r)

	orders, total, err := h.orders.ListForUser(r.Context(), p.UserID, status, page, pageSize)
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, ListResponse[*domain.Order]{
		Items:    orders,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// GetMine handles GET /api/v1/orders/{orderID}
func (h *OrderHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}

	order, err := h.orders.GetForUser(r.Context(), p.UserID, orderID)
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// StartPayment handles POST /api/v1/orders/{orderID}/payment
func (h *OrderHandler) StartPayment(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}

	intent, err := h.orders.StartPayment(r.Context(), p.UserID, orderID)
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, intent)
}

// PaymentWebhook handles POST /api/v1/payments/{provider}/webhook
func (h *OrderHandler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	provider, err := h.payments.Get(name)
	if err != nil {
		middleware.RespondWithError(w, http.StatusNotFound, "unknown payment provider")
		return
	}

	n, err := provider.ParseWebhook(r)
	if err != nil {
		if errors.Is(err, payment.ErrBadSignature) {
			h.logger.Warn("Rejected payment webhook", zap.String("provider", name), zap.String("remote_addr", r.RemoteAddr))
			middleware.RespondWithError(w, http.StatusUnauthorized, "invalid webhook signature")
			return
		}
		middleware.HandleServiceError(w, h.logger, err)
		return
	}

	if !n.Paid {
		h.logger.Info("Payment not completed",
			zap.String("provider", name),
			zap.String("order_id", n.OrderID.String()),
			zap.String("payment_id", n.PaymentID),
		)
		middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	order, err := h.orders.MarkPaid(r.Context(), n.OrderID, n.PaymentID, n.PaidAt)
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{
		"status":   "accepted",
		"order_id": order.ID.String(),
	})
}

// Dashboard handles GET /api/v1/admin/dashboard
func (h *OrderHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.orders.Dashboard(r.Context())
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, summary)
}

// Get handles GET /api/v1/admin/orders/{orderID}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}

	order, err := h.orders.Get(r.Context(), orderID)
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// UpdateStatus handles PUT /api/v1/admin/orders/{orderID}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	var req StatusRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), service.StatusUpdate{
		OrderID:           orderID,
		Status:            req.Status,
		ExpectedUpdatedAt: req.ExpectedUpdatedAt,
		Actor:             actor(r),
	})
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// Edit handles PATCH /api/v1/admin/orders/{orderID}
func (h *OrderHandler) Edit(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	var req EditOrderRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	order, err := h.orders.Save(r.Context(), service.OrderEdit{
		OrderID:           orderID,
		DeliveryCost:      req.DeliveryCost,
		TrackingNumber:    req.TrackingNumber,
		AdminNotes:        req.AdminNotes,
		ExpectedUpdatedAt: req.ExpectedUpdatedAt,
		Actor:             actor(r),
	})
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// Ship handles POST /api/v1/admin/orders/{orderID}/ship
func (h *OrderHandler) Ship(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	var req ShipOrderRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	order, err := h.orders.Ship(r.Context(), service.ShipRequest{
		OrderID:  orderID,
		Provider: req.Provider,
		Actor:    actor(r),
	})
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
}
