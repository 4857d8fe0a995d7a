package handlers

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/Saluana/or3-chat-sub017/internal/errors"
	"github.com/Saluana/or3-chat-sub017/internal/logging"
)

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error("failed to encode response", err)
	}
}

// writeError maps an error to its HTTP status and a structured body.
// Unrecognized errors surface as 500 without leaking internals.
func writeError(w http.ResponseWriter, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = errors.Wrap(errors.ErrInternal, "internal error", err)
	}

	status := http.StatusInternalServerError
	switch appErr.Code {
	case errors.ErrValidation:
		status = http.StatusBadRequest
	case errors.ErrNotFound:
		status = http.StatusNotFound
	case errors.ErrSyncNotConfigured:
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		logging.Error("request failed", appErr)
	}

	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    appErr.Code,
			"message": appErr.Message,
		},
	})
}
