package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/portfolio-engine/internal/errors"
	"github.com/portfolio-engine/internal/logging"
	"github.com/portfolio-engine/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends the categorized form of err. Internal causes are logged, never returned.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	catErr := errors.Categorize(err)

	logger := logging.FromContext(r.Context()).WithFields(map[string]interface{}{
		"code":   catErr.Code,
		"status": catErr.StatusCode,
	})
	if catErr.StatusCode >= 500 {
		logger.WithError(err).Error("Request failed")
	} else {
		logger.Debug("Request rejected: " + catErr.Message)
	}

	if catErr.Category == errors.CategoryRateLimit {
		if retry, ok := catErr.Details["retryAfter"].(int); ok {
			w.Header().Set("Retry-After", strconv.Itoa(retry))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(catErr.StatusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: *catErr.ToServiceError()})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}
