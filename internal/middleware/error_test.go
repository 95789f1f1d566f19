package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"perfume-store/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// Feature: perfume-store, Property 10: Errors have consistent structure
func TestProperty_ErrorsHaveConsistentStructure(t *testing.T) {
	properties := gopter.NewProperties(nil)

	standardCodes := []int{
		http.StatusBadRequest,
		http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusNotFound,
		http.StatusConflict,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
	}

	properties.Property("all error responses have consistent structure", prop.ForAll(
		func(message string, pick int) bool {
			statusCode := standardCodes[pick%len(standardCodes)]

			w := httptest.NewRecorder()
			RespondWithError(w, statusCode, message)

			if w.Code != statusCode || w.Header().Get("Content-Type") != "application/json" {
				return false
			}

			var response ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				return false
			}
			if response.Error.Code != http.StatusText(statusCode) || response.Error.Message != message {
				return false
			}

			_, err := time.Parse(time.RFC3339, response.Error.Timestamp)
			return err == nil
		},
		gen.AlphaString().SuchThat(func(s string) bool { return len(s) > 0 }),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: perfume-store, Property 11: Error details are carried through
func TestProperty_ErrorDetailsAreIncluded(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("error responses with details include them", prop.ForAll(
		func(detailKey string, detailValue string) bool {
			w := httptest.NewRecorder()
			RespondWithErrorDetails(w, http.StatusBadRequest, "bad input", map[string]any{detailKey: detailValue})

			var response ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				return false
			}
			val, ok := response.Error.Details[detailKey]
			return ok && val == detailValue
		},
		gen.Identifier(),
		gen.AlphaString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRespondWithValidationErrors(t *testing.T) {
	w := httptest.NewRecorder()
	RespondWithValidationErrors(w, []ValidationError{{Field: "quantity", Message: "This field is required"}})

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "validation failed", response.Error.Message)
	assert.Contains(t, response.Error.Details, "validation_errors")
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
		level   zapcore.Level
		logged  bool
	}{
		{
			name:    "validation error keeps its message",
			err:     fmt.Errorf("failed to add variant: %w", domain.NewValidationError("variant", "price", "must be positive")),
			status:  http.StatusBadRequest,
			message: "must be positive",
		},
		{
			name:    "stock error",
			err:     fmt.Errorf("checkout failed: %w", &domain.StockError{Product: "Oud", Requested: 3, Available: 1}),
			status:  http.StatusBadRequest,
			message: `product "Oud": insufficient stock (requested 3, available 1)`,
		},
		{
			name:    "transition error",
			err:     &domain.TransitionError{From: domain.OrderStatusShipped, To: domain.OrderStatusPaid},
			status:  http.StatusBadRequest,
			message: "order status transition shipped -> paid is not allowed",
		},
		{
			name:    "sentinel validation error",
			err:     fmt.Errorf("checkout failed: %w", domain.ErrEmptyCart),
			status:  http.StatusBadRequest,
			message: "cart is empty",
		},
		{
			name:    "not found",
			err:     fmt.Errorf("failed to remove cart line: %w", domain.ErrCartLineNotFound),
			status:  http.StatusNotFound,
			message: "cart line not found",
		},
		{
			name:    "stale order",
			err:     fmt.Errorf("failed to update order status: %w", domain.ErrStaleOrder),
			status:  http.StatusConflict,
			message: "order was modified by someone else, reload and retry",
		},
		{
			name:    "provider failure",
			err:     fmt.Errorf("failed to create shipment: %w: %v", domain.ErrProvider, errors.New("timeout")),
			status:  http.StatusBadGateway,
			message: "external provider is unavailable, please retry",
			level:   zapcore.WarnLevel,
			logged:  true,
		},
		{
			name:    "integrity violation is hidden",
			err:     fmt.Errorf("stock would go negative: %w", domain.ErrIntegrity),
			status:  http.StatusInternalServerError,
			message: "internal server error",
			level:   zapcore.ErrorLevel,
			logged:  true,
		},
		{
			name:    "unknown error is hidden",
			err:     errors.New("connection reset by peer"),
			status:  http.StatusInternalServerError,
			message: "internal server error",
			level:   zapcore.ErrorLevel,
			logged:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			w := httptest.NewRecorder()

			HandleServiceError(w, zap.New(core), tt.err)

			assert.Equal(t, tt.status, w.Code)
			var response ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tt.message, response.Error.Message)

			if !tt.logged {
				assert.Zero(t, logs.Len())
				return
			}
			require.Equal(t, 1, logs.Len())
			assert.Equal(t, tt.level, logs.All()[0].Level)
		})
	}
}

func TestErrorHandlingMiddleware_RecoversPanics(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	handler := ErrorHandlingMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
}
