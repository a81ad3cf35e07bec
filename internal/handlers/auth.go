package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BradenHooton/uniplus/internal/auth"
	"github.com/BradenHooton/uniplus/internal/models"
	"github.com/BradenHooton/uniplus/internal/services"
	pkghttp "github.com/BradenHooton/uniplus/pkg/http"
)

// AuthServiceInterface defines the auth core operations the handlers drive
type AuthServiceInterface interface {
	Signup(ctx context.Context, profile models.User, password string) (*models.Session, error)
	Login(ctx context.Context, studentID, password string) (*models.Session, error)
	DemoAccess(ctx context.Context) (*models.Session, error)
	Current(ctx context.Context) (*models.Session, error)
	Refresh(ctx context.Context) (*models.Session, error)
	UpdateProfile(ctx context.Context, accessToken string, user models.User) (*models.Session, error)
	Logout(ctx context.Context) error
	Respond(session *models.Session) *services.SessionResponse
}

// RecoveryServiceInterface defines the password recovery operations
type RecoveryServiceInterface interface {
	RequestRecovery(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, studentID, code, newPassword string) error
}

// AuthHandler handles the /auth endpoints
type AuthHandler struct {
	service  AuthServiceInterface
	recovery RecoveryServiceInterface
	logger   *slog.Logger
}

func NewAuthHandler(service AuthServiceInterface, recovery RecoveryServiceInterface, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:  service,
		recovery: recovery,
		logger:   logger,
	}
}

// Request DTOs

// SignupRequest carries the profile fields of the signup form. Anything left
// empty is filled with the portal defaults.
type SignupRequest struct {
	StudentID  string `json:"studentId" validate:"omitempty,max=32"`
	Password   string `json:"password" validate:"required,max=128"`
	Name       string `json:"name" validate:"omitempty,max=100"`
	Department string `json:"department" validate:"omitempty,oneof=EC EL IT Mech 'Computer Science'"`
	Batch      string `json:"batch" validate:"omitempty,max=16"`
	Year       string `json:"year" validate:"omitempty,max=16"`
	Email      string `json:"email" validate:"omitempty,email"`
	Phone      string `json:"phone" validate:"omitempty,max=20"`
}

type LoginRequest struct {
	StudentID string `json:"studentId" validate:"required,max=32"`
	Password  string `json:"password" validate:"required,max=128"`
}

type RecoverRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	StudentID   string `json:"studentId" validate:"required,max=32"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" validate:"required,max=128"`
}

// MessageResponse is a plain acknowledgement body
type MessageResponse struct {
	Message string `json:"message"`
}

// Signup handles POST /auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	profile := models.User{
		StudentID:  strings.TrimSpace(req.StudentID),
		Name:       strings.TrimSpace(req.Name),
		Department: req.Department,
		Batch:      req.Batch,
		Year:       req.Year,
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:      req.Phone,
	}

	session, err := h.service.Signup(r.Context(), profile, req.Password)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, h.service.Respond(session))
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	session, err := h.service.Login(r.Context(), strings.TrimSpace(req.StudentID), req.Password)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, h.service.Respond(session))
}

// Demo handles POST /auth/demo
func (h *AuthHandler) Demo(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.DemoAccess(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, h.service.Respond(session))
}

// Session handles GET /auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Current(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, h.service.Respond(session))
}

// Refresh handles POST /auth/refresh. Requires the session middleware.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Refresh(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, h.service.Respond(session))
}

// UpdateProfile handles PUT /auth/profile. The body is the full updated profile.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	current := auth.SessionFromContext(r.Context())
	if current == nil {
		pkghttp.WriteUnauthorized(w, "No active session")
		return
	}

	var user models.User
	if !h.decodeAndValidate(w, r, &user) {
		return
	}

	session, err := h.service.UpdateProfile(r.Context(), current.AccessToken, user)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, h.service.Respond(session))
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context()); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Recover handles POST /auth/recover. The response is the same whether or
// not the email belongs to an account.
func (h *AuthHandler) Recover(w http.ResponseWriter, r *http.Request) {
	var req RecoverRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.recovery.RequestRecovery(r.Context(), strings.TrimSpace(req.Email)); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusAccepted, MessageResponse{
		Message: "If the email is registered, a recovery code has been sent",
	})
}

// ResetPassword handles POST /auth/reset
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	err := h.recovery.ResetPassword(r.Context(), strings.TrimSpace(req.StudentID), req.Code, req.NewPassword)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Password updated"})
}

func (h *AuthHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := pkghttp.DecodeJSON(w, r, dst); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return false
	}
	if err := ValidateRequest(dst); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

// writeServiceError maps core errors onto HTTP responses
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var locked *models.LockedError
	switch {
	case errors.As(err, &locked):
		pkghttp.WriteLocked(w, locked.RetryAfter)
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid student ID or password")
	case errors.Is(err, models.ErrIdentityExists):
		pkghttp.WriteError(w, http.StatusConflict, "identity_exists", "Student ID already registered")
	case errors.Is(err, models.ErrSessionExpired):
		pkghttp.WriteError(w, http.StatusUnauthorized, "session_expired", "Session expired. Please log in again")
	case errors.Is(err, models.ErrRotationFailed):
		pkghttp.WriteError(w, http.StatusUnauthorized, "session_expired", "Session could not be renewed. Please log in again")
	case errors.Is(err, models.ErrNoSession):
		pkghttp.WriteUnauthorized(w, "No active session")
	case errors.Is(err, models.ErrRecoveryInvalid):
		pkghttp.WriteError(w, http.StatusBadRequest, "recovery_invalid", "Invalid or expired recovery code")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, err.Error())
	case errors.Is(err, models.ErrKeyNotFound):
		pkghttp.WriteServiceUnavailable(w, "key_not_found", "Assistant is not configured")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteError(w, http.StatusNotFound, "not_found", "Resource not found")
	default:
		logger.Error("request failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
