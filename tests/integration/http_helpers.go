package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/BradenHooton/uniplus/internal/app"
	"github.com/BradenHooton/uniplus/internal/handlers"
	middlewareCustom "github.com/BradenHooton/uniplus/internal/middleware"
	"github.com/BradenHooton/uniplus/internal/routes"
)

// NewTestServer serves the portal API of portal the way cmd/api does
func NewTestServer(portal *app.App, logger *slog.Logger) *httptest.Server {
	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(middlewareCustom.SecureLogger(logger, nil))
	router.Use(chiMiddleware.Recoverer)

	routes.RegisterRoutes(router,
		handlers.NewAuthHandler(portal.Auth, portal.Recovery, logger),
		handlers.NewAssistantHandler(portal.Assistant, logger),
		portal.Auth,
		middlewareCustom.RateLimitConfig{RequestsPerMinute: 1000},
	)
	router.Get("/health", handlers.Health(portal.Config.Storage.Driver, portal.Sessions.Now(), portal.StorageCheck))

	return httptest.NewServer(router)
}

// DoJSON sends body as JSON with an optional bearer token
func DoJSON(client *http.Client, method, url, token string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, fmt.Errorf("encode body: %w", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	return resp, raw, err
}
