// Package httputil writes JSON responses and maps domain error codes to HTTP
// statuses.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "ecoprado/pkg/domain-errors"
)

var statusByCode = map[dErrors.Code]int{
	dErrors.CodeBadRequest:         http.StatusBadRequest,
	dErrors.CodeValidation:         http.StatusBadRequest,
	dErrors.CodeInvalidInput:       http.StatusBadRequest,
	dErrors.CodeUnauthorized:       http.StatusUnauthorized,
	dErrors.CodeForbidden:          http.StatusForbidden,
	dErrors.CodeNotFound:           http.StatusNotFound,
	dErrors.CodeConflict:           http.StatusConflict,
	dErrors.CodeInvalidState:       http.StatusConflict,
	dErrors.CodeInvariantViolation: http.StatusUnprocessableEntity,
	dErrors.CodeTimeout:            http.StatusGatewayTimeout,
	dErrors.CodeInternal:           http.StatusInternalServerError,
}

// StatusFor returns the HTTP status for err's domain code.
func StatusFor(err error) int {
	if status, ok := statusByCode[dErrors.CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the error code and, except for internal errors, the message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := map[string]string{"error": string(code)}
	if code != dErrors.CodeInternal {
		var de *dErrors.Error
		if errors.As(err, &de) {
			body["error_description"] = de.Message
		}
	}
	WriteJSON(w, StatusFor(err), body)
}
