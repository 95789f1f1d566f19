package transport

import (
	"net/http"
	"strconv"
	"time"

	"perfume-store/internal/middleware"
	"perfume-store/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// PromotionHandler handles the administrative promotion endpoints
type PromotionHandler struct {
	promotions service.PromotionService
	logger     *zap.Logger
}

// NewPromotionHandler creates a new PromotionHandler
func NewPromotionHandler(promotions service.PromotionService, logger *zap.Logger) *PromotionHandler {
	return &PromotionHandler{promotions: promotions, logger: logger}
}

// RegisterRoutes registers the promotion routes on the /api/v1 router. All of them
// require an administrator.
func (h *PromotionHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware, adminMiddleware)
		r.Get("/admin/promotions", h.List)
		r.Post("/admin/promotions", h.Create)
		r.Get("/admin/promotions/{promotionID}", h.Get)
		r.Put("/admin/promotions/{promotionID}", h.Update)
		r.Post("/admin/promotions/{promotionID}/apply", h.Apply)
		r.Post("/admin/promotions/{promotionID}/clear", h.Clear)
		r.Get("/admin/promotions/{promotionID}/targets", h.Targets)
	})
}

// List handles GET /api/v1/admin/promotions?active=
func (h *PromotionHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))

	promos, err := h.promotions.List(r.Context(), activeOnly)
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, promos)
}

// Create handles POST /api/v1/admin/promotions
func (h *PromotionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.PromotionInput
	if !decode(w, r, h.logger, &req) {
		return
	}

	promo, err := h.promotions.Create(r.Context(), req, actor(r))
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, promo)
}

// Get handles GET /api/v1/admin/promotions/{promotionID}
func (h *PromotionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "promotionID")
	if !ok {
		return
	}

	promo, err := h.promotions.Get(r.Context(), id)
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, promo)
}

// Update handles PUT /api/v1/admin/promotions/{promotionID}
func (h *PromotionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "promotionID")
	if !ok {
		return
	}
	var req service.PromotionInput
	if !decode(w, r, h.logger, &req) {
		return
	}

	promo, err := h.promotions.Update(r.Context(), id, req, actor(r))
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, promo)
}

// Apply handles POST /api/v1/admin/promotions/{promotionID}/apply
func (h *PromotionHandler) Apply(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "promotionID")
	if !ok {
		return
	}

	result, err := h.promotions.Apply(r.Context(), id, actor(r))
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, result)
}

// Clear handles POST /api/v1/admin/promotions/{promotionID}/clear
func (h *PromotionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "promotionID")
	if !ok {
		return
	}

	result, err := h.promotions.Clear(r.Context(), id, actor(r))
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, result)
}

// Targets handles GET /api/v1/admin/promotions/{promotionID}/targets
func (h *PromotionHandler) Targets(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "promotionID")
	if !ok {
		return
	}

	products, err := h.promotions.ResolveTargets(r.Context(), id)
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}

	now := time.Now().UTC()
	items := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		items = append(items, newProductResponse(p, now))
	}
	middleware.RespondWithJSON(w, http.StatusOK, items)
}
