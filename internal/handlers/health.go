package handlers

import (
	"context"
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/uniplus/pkg/http"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
	Uptime  string `json:"uptime"`
	Error   string `json:"error,omitempty"`
}

// Health returns a liveness handler reporting the active storage driver.
// check may be nil for in-process backends.
func Health(storageDriver string, startedAt time.Time, check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:  "ok",
			Storage: storageDriver,
			Uptime:  time.Since(startedAt).Round(time.Second).String(),
		}
		if check != nil {
			if err := check(r.Context()); err != nil {
				resp.Status = "degraded"
				resp.Error = err.Error()
				pkghttp.WriteJSON(w, http.StatusServiceUnavailable, resp)
				return
			}
		}
		pkghttp.WriteJSON(w, http.StatusOK, resp)
	}
}
