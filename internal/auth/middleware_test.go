package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/uniplus/internal/models"
	"github.com/stretchr/testify/assert"
)

type mockAuthenticator struct {
	AuthenticateFunc func(ctx context.Context, accessToken string) (*models.Session, error)
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, accessToken string) (*models.Session, error) {
	return m.AuthenticateFunc(ctx, accessToken)
}

func TestTokensEqual(t *testing.T) {
	assert.True(t, TokensEqual("at_abc", "at_abc"))
	assert.False(t, TokensEqual("at_abc", "at_abd"))
	assert.False(t, TokensEqual("at_abc", "at_ab"))
	assert.False(t, TokensEqual("", "at_abc"))
}

func TestRequireSession(t *testing.T) {
	active := &models.Session{AccessToken: "at_good", User: models.User{StudentID: "23CP001"}}

	authenticator := &mockAuthenticator{
		AuthenticateFunc: func(ctx context.Context, token string) (*models.Session, error) {
			switch token {
			case "at_good":
				return active, nil
			case "at_expired":
				return nil, models.ErrSessionExpired
			case "at_broken":
				return nil, errors.New("storage offline")
			default:
				return nil, models.ErrNoSession
			}
		},
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"missing header", "", http.StatusUnauthorized, "unauthorized"},
		{"wrong scheme", "Basic at_good", http.StatusUnauthorized, "unauthorized"},
		{"unknown token", "Bearer at_other", http.StatusUnauthorized, "unauthorized"},
		{"expired session", "Bearer at_expired", http.StatusUnauthorized, "session_expired"},
		{"storage failure", "Bearer at_broken", http.StatusInternalServerError, "internal_error"},
		{"valid token", "Bearer at_good", http.StatusOK, "23CP001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireSession(authenticator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				s := SessionFromContext(r.Context())
				w.Write([]byte(s.User.StudentID))
			}))

			req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestSessionFromContext_Empty(t *testing.T) {
	assert.Nil(t, SessionFromContext(context.Background()))
}
