// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GlobalCart Contributors

package httpapi

import (
	"net/http"
	"strconv"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// countRegistration increments the registration counter. No-op when no
// metrics server is running.
func (h *Handler) countRegistration(status string) {
	if h.metrics != nil {
		h.metrics.RegistrationsTotal.WithLabelValues(status).Inc()
	}
}

// countLogin increments the login counter ("success" or "failure").
func (h *Handler) countLogin(status string) {
	if h.metrics != nil {
		h.metrics.LoginsTotal.WithLabelValues(status).Inc()
	}
}

// countPasswordReset increments the reset counter ("requested",
// "completed", or "failure").
func (h *Handler) countPasswordReset(status string) {
	if h.metrics != nil {
		h.metrics.PasswordResetsTotal.WithLabelValues(status).Inc()
	}
}

// instrument counts requests per route and status class.
func (h *Handler) instrument(route string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.metrics == nil {
			next(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		h.metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}
