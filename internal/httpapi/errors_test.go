// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GlobalCart Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "mapped code carries its status and message",
			err:         oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid email or password"),
			wantStatus:  http.StatusUnauthorized,
			wantCode:    "AUTH_INVALID_CREDENTIALS",
			wantMessage: "invalid email or password",
		},
		{
			name:        "conflict code",
			err:         oops.Code("AUTH_EMAIL_TAKEN").Errorf("email is already registered"),
			wantStatus:  http.StatusConflict,
			wantCode:    "AUTH_EMAIL_TAKEN",
			wantMessage: "email is already registered",
		},
		{
			name:        "delivery failure maps to bad gateway",
			err:         oops.Code("NOTIFY_DELIVERY_FAILED").Errorf("send reset email: smtp down"),
			wantStatus:  http.StatusBadGateway,
			wantCode:    "NOTIFY_DELIVERY_FAILED",
			wantMessage: "send reset email: smtp down",
		},
		{
			name:        "unmapped code stays internal without detail",
			err:         oops.Code("AUTH_LOGIN_FAILED").Errorf("db exploded"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "INTERNAL",
			wantMessage: "internal server error",
		},
		{
			name:        "codeless oops error stays internal",
			err:         oops.Errorf("no code attached"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "INTERNAL",
			wantMessage: "internal server error",
		},
		{
			name:        "plain error stays internal",
			err:         errors.New("boom"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "INTERNAL",
			wantMessage: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, logger, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Contains(t, body.Message, tt.wantMessage)
		})
	}
}
