package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/uniplus/internal/auth"
	"github.com/BradenHooton/uniplus/internal/models"
	"github.com/BradenHooton/uniplus/internal/services"
	pkghttp "github.com/BradenHooton/uniplus/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithSessionContext injects session the way auth.RequireSession does
func WithSessionContext(req *http.Request, session *models.Session) *http.Request {
	ctx := context.WithValue(req.Context(), auth.SessionContextKey, session)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target any) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	SignupFunc        func(ctx context.Context, profile models.User, password string) (*models.Session, error)
	LoginFunc         func(ctx context.Context, studentID, password string) (*models.Session, error)
	DemoAccessFunc    func(ctx context.Context) (*models.Session, error)
	CurrentFunc       func(ctx context.Context) (*models.Session, error)
	RefreshFunc       func(ctx context.Context) (*models.Session, error)
	UpdateProfileFunc func(ctx context.Context, accessToken string, user models.User) (*models.Session, error)
	LogoutFunc        func(ctx context.Context) error
}

func (m *MockAuthService) Signup(ctx context.Context, profile models.User, password string) (*models.Session, error) {
	if m.SignupFunc == nil {
		return nil, models.ErrIdentityExists
	}
	return m.SignupFunc(ctx, profile, password)
}

func (m *MockAuthService) Login(ctx context.Context, studentID, password string) (*models.Session, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.LoginFunc(ctx, studentID, password)
}

func (m *MockAuthService) DemoAccess(ctx context.Context) (*models.Session, error) {
	if m.DemoAccessFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.DemoAccessFunc(ctx)
}

func (m *MockAuthService) Current(ctx context.Context) (*models.Session, error) {
	if m.CurrentFunc == nil {
		return nil, models.ErrNoSession
	}
	return m.CurrentFunc(ctx)
}

func (m *MockAuthService) Refresh(ctx context.Context) (*models.Session, error) {
	if m.RefreshFunc == nil {
		return nil, models.ErrNoSession
	}
	return m.RefreshFunc(ctx)
}

func (m *MockAuthService) UpdateProfile(ctx context.Context, accessToken string, user models.User) (*models.Session, error) {
	if m.UpdateProfileFunc == nil {
		return nil, models.ErrNoSession
	}
	return m.UpdateProfileFunc(ctx, accessToken, user)
}

func (m *MockAuthService) Logout(ctx context.Context) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx)
}

// Respond renders without a clock: the full TTL is reported as remaining
func (m *MockAuthService) Respond(session *models.Session) *services.SessionResponse {
	return &services.SessionResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresAt:    session.ExpiresAt,
		ExpiresInMs:  300_000,
		User:         session.User,
	}
}

// MockRecoveryService implements RecoveryServiceInterface for testing
type MockRecoveryService struct {
	RequestRecoveryFunc func(ctx context.Context, email string) error
	ResetPasswordFunc   func(ctx context.Context, studentID, code, newPassword string) error
}

func (m *MockRecoveryService) RequestRecovery(ctx context.Context, email string) error {
	if m.RequestRecoveryFunc == nil {
		return nil
	}
	return m.RequestRecoveryFunc(ctx, email)
}

func (m *MockRecoveryService) ResetPassword(ctx context.Context, studentID, code, newPassword string) error {
	if m.ResetPasswordFunc == nil {
		return models.ErrRecoveryInvalid
	}
	return m.ResetPasswordFunc(ctx, studentID, code, newPassword)
}

// MockAssistantService implements AssistantServiceInterface for testing
type MockAssistantService struct {
	AskFunc func(ctx context.Context, query, campusContext string) (string, error)
}

func (m *MockAssistantService) Ask(ctx context.Context, query, campusContext string) (string, error) {
	if m.AskFunc == nil {
		return "", models.ErrKeyNotFound
	}
	return m.AskFunc(ctx, query, campusContext)
}
