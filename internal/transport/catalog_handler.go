package transport

import (
	"net/http"
	"strings"
	"time"

	"perfume-store/internal/domain"
	"perfume-store/internal/middleware"
	"perfume-store/internal/repository"
	"perfume-store/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductResponse is a product with its prices resolved at request time
type ProductResponse struct {
	*domain.Product
	Price           decimal.Decimal   `json:"price"`
	OnSale          bool              `json:"on_sale"`
	DiscountPercent int               `json:"discount_percent"`
	Stock           int               `json:"stock"`
	SizeLabel       string            `json:"size_label"`
	VariantPrices   []VariantResponse `json:"variant_prices,omitempty"`
}

// VariantResponse is the resolved price of one variant
type VariantResponse struct {
	VariantID uuid.UUID       `json:"variant_id"`
	SizeLabel string          `json:"size_label"`
	Price     decimal.Decimal `json:"price"`
	InStock   bool            `json:"in_stock"`
	IsDefault bool            `json:"is_default"`
}

func newProductResponse(p *domain.Product, asOf time.Time) ProductResponse {
	resp := ProductResponse{
		Product:         p,
		Price:           p.ResolvePrice(asOf),
		OnSale:          p.IsOnSale(asOf),
		DiscountPercent: p.DiscountPercentDisplay(),
		Stock:           p.ResolveStock(),
		SizeLabel:       p.Kind.SizeLabel(p.Size),
	}
	for i := range p.Variants {
		v := &p.Variants[i]
		resp.VariantPrices = append(resp.VariantPrices, VariantResponse{
			VariantID: v.ID,
			SizeLabel: p.Kind.SizeLabel(v.Size),
			Price:     p.VariantPrice(v, asOf),
			InStock:   v.InStock && v.StockQuantity > 0,
			IsDefault: v.IsDefault,
		})
	}
	return resp
}

// DefaultVariantRequest selects the default variant of a product
type DefaultVariantRequest struct {
	VariantID uuid.UUID `json:"variant_id" validate:"required"`
}

// SyncPricesRequest lists the cart items whose prices the client wants refreshed
type SyncPricesRequest struct {
	Items []service.PriceRequest `json:"items" validate:"required,min=1,max=100,dive"`
}

// CatalogHandler handles HTTP requests for the catalog
type CatalogHandler struct {
	catalog service.CatalogService
	audit   service.AuditService
	logger  *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalog service.CatalogService, audit service.AuditService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		audit:   audit,
		logger:  logger,
	}
}

// RegisterRoutes registers the catalog routes on the /api/v1 router
func (h *CatalogHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Get("/brands", h.ListBrands)
	r.Get("/categories", h.ListCategories)
	r.Get("/products", h.ListProducts)
	r.Get("/products/{productID}", h.GetProduct)
	r.Get("/products/{productID}/price-range", h.GetPriceRange)
	r.Post("/prices/sync", h.SyncPrices)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware, adminMiddleware)
		r.Post("/admin/brands", h.CreateBrand)
		r.Post("/admin/categories", h.CreateCategory)
		r.Post("/admin/products", h.CreateProduct)
		r.Post("/admin/products/{productID}/variants", h.AddVariant)
		r.Put("/admin/products/{productID}/default-variant", h.SetDefaultVariant)
		r.Put("/admin/products/{productID}/discount", h.SetDiscount)
		r.Delete("/admin/products/{productID}/discount", h.ClearDiscount)
		r.Get("/admin/audit/{objectType}/{objectID}", h.ListAudit)
	})
}

// ListBrands handles GET /api/v1/brands
func (h *CatalogHandler) ListBrands(w http.ResponseWriter, r *http.Request) {
	brands, err := h.catalog.ListBrands(r.Context())
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, brands)
}

// ListCategories handles GET /api/v1/categories?kind=
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	var kind *domain.Kind
	if raw := r.URL.Query().Get("kind"); raw != "" {
		k := domain.Kind(raw)
		if !k.Valid() {
			middleware.RespondWithError(w, http.StatusBadRequest, "kind must be perfume or pigment")
			return
		}
		kind = &k
	}

	categories, err := h.catalog.ListCategories(r.Context(), kind)
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, categories)
}

// ListProducts handles GET /api/v1/products with filtering, search and pagination
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := productFilter(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	products, total, err := h.catalog.ListProducts(r.Context(), filter)
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}

	now := time.Now().UTC()
	items := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		items = append(items, newProductResponse(p, now))
	}
	middleware.RespondWithJSON(w, http.StatusOK, ListResponse[ProductResponse]{
		Items:    items,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	})
}

func productFilter(r *http.Request) (repository.ProductFilter, error) {
	q := r.URL.Query()
	var filter repository.ProductFilter
	filter.Page, filter.PageSize = pagination(r)
	filter.Search = strings.TrimSpace(q.Get("search"))
	filter.SortBy = q.Get("sort_by")
	filter.SortOrder = repository.SortOrder(q.Get("sort_order"))

	if raw := q.Get("kind"); raw != "" {
		k := domain.Kind(raw)
		if !k.Valid() {
			return filter, errBadQuery("kind")
		}
		filter.Kind = &k
	}

	var err error
	if filter.BrandID, err = queryUUID(r, "brand_id"); err != nil {
		return filter, errBadQuery("brand_id")
	}
	if filter.CategoryID, err = queryUUID(r, "category_id"); err != nil {
		return filter, errBadQuery("category_id")
	}
	if filter.InStock, err = queryBool(r, "in_stock"); err != nil {
		return filter, errBadQuery("in_stock")
	}
	if filter.Featured, err = queryBool(r, "featured"); err != nil {
		return filter, errBadQuery("featured")
	}
	onSale, err := queryBool(r, "on_sale")
	if err != nil {
		return filter, errBadQuery("on_sale")
	}
	if onSale != nil && *onSale {
		now := time.Now().UTC()
		filter.OnSaleAt = &now
	}
	return filter, nil
}

type errBadQuery string

func (e errBadQuery) Error() string { return "invalid query parameter " + string(e) }

// GetProduct handles GET /api/v1/products/{productID}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "productID")
	if !ok {
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, newProductResponse(product, time.Now().UTC()))
}

// GetPriceRange handles GET /api/v1/products/{productID}/price-range?at=
func (h *CatalogHandler) GetPriceRange(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	at, err := queryTime(r, "at")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "at must be an RFC 3339 timestamp")
		return
	}

	priceRange, err := h.catalog.PriceRange(r.Context(), id, at)
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, priceRange)
}

// SyncPrices handles POST /api/v1/prices/sync
func (h *CatalogHandler) SyncPrices(w http.ResponseWriter, r *http.Request) {
	var req SyncPricesRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	quotes, err := h.catalog.SyncPrices(r.Context(), req.Items, time.Now().UTC())
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, quotes)
}

// CreateBrand handles POST /api/v1/admin/brands
func (h *CatalogHandler) CreateBrand(w http.ResponseWriter, r *http.Request) {
	var req service.BrandInput
	if !decode(w, r, h.logger, &req) {
		return
	}

	brand, err := h.catalog.CreateBrand(r.Context(), req)
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, brand)
}

// CreateCategory handles POST /api/v1/admin/categories
func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req service.CategoryInput
	if !decode(w, r, h.logger, &req) {
		return
	}

	category, err := h.catalog.CreateCategory(r.Context(), req)
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, category)
}

// CreateProduct handles POST /api/v1/admin/products
func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req service.ProductInput
	if !decode(w, r, h.logger, &req) {
		return
	}

	product, err := h.catalog.CreateProduct(r.Context(), req)
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, newProductResponse(product, time.Now().UTC()))
}

// AddVariant handles POST /api/v1/admin/products/{productID}/variants
func (h *CatalogHandler) AddVariant(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	var req service.VariantInput
	if !decode(w, r, h.logger, &req) {
		return
	}

	variant, err := h.catalog.AddVariant(r.Context(), id, req)
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, variant)
}

// SetDefaultVariant handles PUT /api/v1/admin/products/{productID}/default-variant
func (h *CatalogHandler) SetDefaultVariant(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	var req DefaultVariantRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	if err := h.catalog.SetDefaultVariant(r.Context(), id, req.VariantID, actor(r)); err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetDiscount handles PUT /api/v1/admin/products/{productID}/discount
func (h *CatalogHandler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	var req service.DiscountInput
	if !decode(w, r, h.logger, &req) {
		return
	}

	product, err := h.catalog.SetDiscount(r.Context(), id, req, actor(r))
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, newProductResponse(product, time.Now().UTC()))
}

// ClearDiscount handles DELETE /api/v1/admin/products/{productID}/discount
func (h *CatalogHandler) ClearDiscount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "productID")
	if !ok {
		return
	}

	product, err := h.catalog.ClearDiscount(r.Context(), id, actor(r))
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, newProductResponse(product, time.Now().UTC()))
}

// ListAudit handles GET /api/v1/admin/audit/{objectType}/{objectID}
func (h *CatalogHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.audit.ListForObject(r.Context(), chi.URLParam(r, "objectType"), chi.URLParam(r, "objectID"))
	if err != nil {
		middleware.HandleServiceError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, entries)
}
