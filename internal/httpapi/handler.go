// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GlobalCart Contributors

// Package httpapi exposes the identity service over a JSON HTTP API.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/globalcart/identity/internal/auth"
	"github.com/globalcart/identity/internal/observability"
)

// Handler holds the services behind the HTTP API.
type Handler struct {
	auth    *auth.Service
	resets  *auth.PasswordResetService
	admin   *auth.AdminService
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewHandler creates the API handler. metrics may be nil when no
// observability server is running.
func NewHandler(authSvc *auth.Service, resets *auth.PasswordResetService, admin *auth.AdminService, metrics *observability.Metrics, logger *slog.Logger) (*Handler, error) {
	if authSvc == nil {
		return nil, oops.Errorf("auth service is required")
	}
	if resets == nil {
		return nil, oops.Errorf("password reset service is required")
	}
	if admin == nil {
		return nil, oops.Errorf("admin service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		auth:    authSvc,
		resets:  resets,
		admin:   admin,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// Routes builds the API route table.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /api/v1/auth/register", h.instrument("register", h.handleRegister))
	mux.Handle("POST /api/v1/auth/login", h.instrument("login", h.handleLogin))
	mux.Handle("POST /api/v1/auth/logout", h.instrument("logout", h.handleLogout))
	mux.Handle("POST /api/v1/password/forgot", h.instrument("password_forgot", h.handleForgotPassword))
	mux.Handle("POST /api/v1/password/reset/{token}", h.instrument("password_reset", h.handleResetPassword))

	authed := auth.Authenticate(h.auth)
	mux.Handle("GET /api/v1/me", authed(h.instrument("profile", h.handleProfile)))
	mux.Handle("PUT /api/v1/me", authed(h.instrument("profile_update", h.handleUpdateProfile)))
	mux.Handle("PUT /api/v1/me/password", authed(h.instrument("password_change", h.handleChangePassword)))

	adminGate := auth.RequireRole(auth.RoleAdmin)
	adminOnly := func(route string, fn http.HandlerFunc) http.Handler {
		return authed(adminGate(h.instrument(route, fn)))
	}
	mux.Handle("GET /api/v1/admin/users", adminOnly("admin_list_users", h.handleListUsers))
	mux.Handle("GET /api/v1/admin/users/{id}", adminOnly("admin_get_user", h.handleGetUser))
	mux.Handle("PUT /api/v1/admin/users/{id}", adminOnly("admin_update_user", h.handleUpdateUser))
	mux.Handle("PUT /api/v1/admin/users/{id}/role", adminOnly("admin_set_role", h.handleSetRole))
	mux.Handle("DELETE /api/v1/admin/users/{id}", adminOnly("admin_delete_user", h.handleDeleteUser))

	return mux
}

// userResponse is the public view of a user.
type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// sessionResponse carries a freshly issued session alongside the user.
type sessionResponse struct {
	User      userResponse `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

func toUserResponse(u *auth.User) userResponse {
	return userResponse{
		ID:        u.ID.String(),
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
	}
}

type registerRequest struct {
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, session, err := h.auth.Register(r.Context(), req.Name, req.Email, req.Password, req.AvatarURL)
	if err != nil {
		h.countRegistration("failure")
		writeError(w, h.logger, err)
		return
	}
	h.countRegistration("success")

	setSessionCookie(w, session)
	writeJSON(w, http.StatusCreated, sessionResponse{
		User:      toUserResponse(user),
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, session, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.countLogin("failure")
		writeError(w, h.logger, err)
		return
	}
	h.countLogin("success")

	setSessionCookie(w, session)
	writeJSON(w, http.StatusOK, sessionResponse{
		User:      toUserResponse(user),
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, _ *http.Request) {
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.resets.RequestReset(r.Context(), req.Email); err != nil {
		h.countPasswordReset("failure")
		writeError(w, h.logger, err)
		return
	}
	h.countPasswordReset("requested")

	writeJSON(w, http.StatusOK, map[string]string{"message": "reset instructions sent"})
}

type resetPasswordRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, session, err := h.resets.ResetPassword(r.Context(), r.PathValue("token"), req.Password, req.ConfirmPassword)
	if err != nil {
		h.countPasswordReset("failure")
		writeError(w, h.logger, err)
		return
	}
	h.countPasswordReset("completed")

	setSessionCookie(w, session)
	writeJSON(w, http.StatusOK, sessionResponse{
		User:      toUserResponse(user),
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	})
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Code: "AUTH_UNAUTHENTICATED", Message: "unauthenticated"})
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(identity))
}

type updateProfileRequest struct {
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Code: "AUTH_UNAUTHENTICATED", Message: "unauthenticated"})
		return
	}

	var req updateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.auth.UpdateProfile(r.Context(), identity.ID, req.Name, req.Email, req.AvatarURL)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Code: "AUTH_UNAUTHENTICATED", Message: "unauthenticated"})
		return
	}

	var req changePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.auth.ChangePassword(r.Context(), identity.ID, req.OldPassword, req.NewPassword); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	users, err := h.admin.ListUsers(r.Context(), actor)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out, "count": len(out)})
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	user, err := h.admin.GetUser(r.Context(), actor, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

type adminUpdateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req adminUpdateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.admin.UpdateUser(r.Context(), actor, id, req.Name, req.Email, auth.Role(req.Role))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

type setRoleRequest struct {
	Role string `json:"role"`
}

func (h *Handler) handleSetRole(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req setRoleRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.admin.SetRole(r.Context(), actor, id, auth.Role(req.Role)); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "role updated"})
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.admin.DeleteUser(r.Context(), actor, id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

// decode parses the JSON request body into dst, writing a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "invalid request body"})
		return false
	}
	return true
}

// pathID parses the {id} path segment as a ULID, writing a 400 on failure.
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (ulid.ULID, bool) {
	id, err := ulid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "invalid user id"})
		return ulid.ULID{}, false
	}
	return id, true
}
