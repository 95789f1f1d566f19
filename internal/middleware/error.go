package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"perfume-store/internal/domain"

	"go.uber.org/zap"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// RespondWithError sends a structured error response
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	RespondWithErrorDetails(w, statusCode, message, nil)
}

// RespondWithErrorDetails sends a structured error response with additional details
func RespondWithErrorDetails(w http.ResponseWriter, statusCode int, message string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: ErrorDetail{
			Code:      http.StatusText(statusCode),
			Message:   message,
			Details:   details,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	json.NewEncoder(w).Encode(response)
}

// RespondWithValidationErrors sends validation error response
func RespondWithValidationErrors(w http.ResponseWriter, errors []ValidationError) {
	details := make(map[string]any)
	details["validation_errors"] = errors

	RespondWithErrorDetails(w, http.StatusBadRequest, "validation failed", details)
}

// HandleServiceError maps an error returned by a service to a response.
// Business rule violations carry their own message; internal failures are logged and
// answered with a generic one.
func HandleServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		verr *domain.ValidationError
		serr *domain.StockError
		terr *domain.TransitionError
	)
	switch {
	case errors.As(err, &serr):
		RespondWithErrorDetails(w, http.StatusBadRequest, serr.Error(), map[string]any{
			"product":   serr.Product,
			"requested": serr.Requested,
			"available": serr.Available,
		})
	case errors.As(err, &terr):
		RespondWithErrorDetails(w, http.StatusBadRequest, terr.Error(), map[string]any{
			"from": terr.From,
			"to":   terr.To,
		})
	case errors.As(err, &verr):
		var details map[string]any
		if verr.Field != "" {
			details = map[string]any{"entity": verr.Entity, "field": verr.Field}
		}
		RespondWithErrorDetails(w, http.StatusBadRequest, verr.Message, details)
	case errors.Is(err, domain.ErrValidation):
		RespondWithError(w, http.StatusBadRequest, rootMessage(err))
	case errors.Is(err, domain.ErrNotFound):
		RespondWithError(w, http.StatusNotFound, rootMessage(err))
	case errors.Is(err, domain.ErrConflict):
		RespondWithError(w, http.StatusConflict, rootMessage(err))
	case errors.Is(err, domain.ErrProvider):
		logger.Warn("External provider failure", zap.Error(err))
		RespondWithError(w, http.StatusBadGateway, "external provider is unavailable, please retry")
	default:
		if errors.Is(err, domain.ErrIntegrity) {
			logger.Error("Data integrity violation", zap.Error(err))
		} else {
			logger.Error("Internal error", zap.Error(err))
		}
		RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

// rootMessage strips the "failed to ..." wrapping services add, leaving the message of
// the innermost domain error.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		if isClass(next) {
			return strings.TrimSuffix(err.Error(), ": "+next.Error())
		}
		err = next
	}
}

func isClass(err error) bool {
	switch err {
	case domain.ErrValidation, domain.ErrNotFound, domain.ErrConflict, domain.ErrIntegrity, domain.ErrProvider:
		return true
	}
	return false
}

// ErrorHandlingMiddleware catches panics and converts them to 500 errors
func ErrorHandlingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("Panic recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)

					RespondWithError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
