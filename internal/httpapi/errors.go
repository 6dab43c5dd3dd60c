// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GlobalCart Contributors

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/samber/oops"
)

// errorResponse is the JSON body returned for every failed request.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusForCode maps service error codes to HTTP status codes. Codes not
// listed here are treated as internal errors.
var statusForCode = map[string]int{
	"AUTH_INVALID_CREDENTIALS": http.StatusUnauthorized,
	"AUTH_UNAUTHENTICATED":     http.StatusUnauthorized,
	"AUTH_TOKEN_INVALID":       http.StatusUnauthorized,
	"AUTH_FORBIDDEN":           http.StatusForbidden,
	"AUTH_EMAIL_TAKEN":         http.StatusConflict,
	"AUTH_INVALID_PASSWORD":    http.StatusBadRequest,
	"USER_INVALID_NAME":        http.StatusBadRequest,
	"USER_INVALID_EMAIL":       http.StatusBadRequest,
	"USER_INVALID_ROLE":        http.StatusBadRequest,
	"USER_NOT_FOUND":           http.StatusNotFound,
	"RESET_TOKEN_INVALID":      http.StatusBadRequest,
	"RESET_PASSWORD_MISMATCH":  http.StatusBadRequest,
	"NOTIFY_DELIVERY_FAILED":   http.StatusBadGateway,
}

// writeError translates a service error into a JSON error response. Internal
// errors are logged and reported without detail.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	code := "INTERNAL"
	message := "internal server error"
	status := http.StatusInternalServerError

	if oopsErr, ok := oops.AsOops(err); ok {
		if c, isStr := oopsErr.Code().(string); isStr && c != "" {
			if s, known := statusForCode[c]; known {
				code = c
				message = oopsErr.Error()
				status = s
			}
		}
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	}

	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // response write error means the client is gone
	json.NewEncoder(w).Encode(v)
}
