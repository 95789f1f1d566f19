package transport

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"perfume-store/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// decode reads and validates a JSON body, writing the 400 response itself on failure.
func decode(w http.ResponseWriter, r *http.Request, logger *zap.Logger, v any) bool {
	err := middleware.DecodeAndValidate(r, v)
	if err == nil {
		return true
	}
	logger.Debug("Request validation failed", zap.String("path", r.URL.Path), zap.Error(err))

	if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
		middleware.RespondWithValidationErrors(w, validationErrors)
		return false
	}
	if errors.Is(err, middleware.ErrEmptyBody) {
		middleware.RespondWithError(w, http.StatusBadRequest, "request body is required")
		return false
	}
	middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
	return false
}

// pathID parses a UUID URL parameter, writing a 400 response when it is malformed.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// principal returns the authenticated caller. Routes using it sit behind AuthMiddleware,
// so a missing principal is a wiring error.
func principal(w http.ResponseWriter, r *http.Request) (middleware.Principal, bool) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "authentication required")
	}
	return p, ok
}

// actor is the principal's id as recorded in the audit log.
func actor(r *http.Request) *uuid.UUID {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		return nil
	}
	return &p.UserID
}

func pagination(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	return page, min(pageSize, maxPageSize)
}

// queryTime reads an RFC 3339 timestamp, defaulting to now.
func queryTime(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse(time.RFC3339, raw)
}

func queryUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func queryBool(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListResponse is a page of results
type ListResponse[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}
