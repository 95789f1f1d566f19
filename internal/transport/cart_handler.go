package transport

import (
	"net/http"

	"perfume-store/internal/middleware"
	"perfume-store/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UpdateLineRequest sets a cart line's quantity; zero removes the line
type UpdateLineRequest struct {
	Quantity int `json:"quantity" validate:"gte=0,lte=999"`
}

// CartHandler handles the customer's cart and checkout
type CartHandler struct {
	carts  service.CartService
	logger *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(carts service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{carts: carts, logger: logger}
}

// RegisterRoutes registers the cart routes on the /api/v1 router
func (h *CartHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/cart", h.GetCart)
		r.Post("/cart/lines", h.AddLine)
		r.Patch("/cart/lines/{lineID}", h.UpdateLine)
		r.Delete("/cart/lines/{lineID}", h.RemoveLine)
		r.Get("/cart/delivery-options", h.QuoteDelivery)
		r.Post("/cart/checkout", h.Checkout)
	})
}

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.GetCart(r.Context(), p.UserID)
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, cart)
}

// AddLine handles POST /api/v1/cart/lines
func (h *CartHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req service.LineInput
	if !decode(w, r, h.logger, &req) {
		return
	}

	cart, err := h.carts.AddLine(r.Context(), p.UserID, req)
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, cart)
}

// UpdateLine handles PATCH /api/v1/cart/lines/{lineID}
func (h *CartHandler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	lineID, ok := pathID(w, r, "lineID")
	if !ok {
		return
	}
	var req UpdateLineRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	cart, err := h.carts.UpdateLine(r.Context(), p.UserID, lineID, req.Quantity)
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, cart)
}

// RemoveLine handles DELETE /api/v1/cart/lines/{lineID}
func (h *CartHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	lineID, ok := pathID(w, r, "lineID")
	if !ok {
		return
	}

	cart, err := h.carts.RemoveLine(r.Context(), p.UserID, lineID)
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, cart)
}

// QuoteDelivery handles GET /api/v1/cart/delivery-options?postal_code=&city=
func (h *CartHandler) QuoteDelivery(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	options, err := h.carts.QuoteDelivery(r.Context(), p.UserID, q.Get("postal_code"), q.Get("city"))
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, options)
}

// Checkout handles POST /api/v1/cart/checkout
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req service.CheckoutInput
	if !decode(w, r, h.logger, &req) {
		return
	}

	result, err := h.carts.Checkout(r.Context(), p.UserID, req)
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, result)
}
