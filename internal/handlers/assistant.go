package handlers

import (
	"context"
	"log/slog"
	"net/http"

	pkghttp "github.com/BradenHooton/uniplus/pkg/http"
)

// AssistantServiceInterface answers campus questions
type AssistantServiceInterface interface {
	Ask(ctx context.Context, query, campusContext string) (string, error)
}

type AssistantHandler struct {
	service AssistantServiceInterface
	logger  *slog.Logger
}

func NewAssistantHandler(service AssistantServiceInterface, logger *slog.Logger) *AssistantHandler {
	return &AssistantHandler{service: service, logger: logger}
}

// AskRequest carries the user query and the campus data the client renders
type AskRequest struct {
	Query   string `json:"query" validate:"required,max=2000"`
	Context string `json:"context" validate:"max=20000"`
}

type AskResponse struct {
	Reply string `json:"reply"`
}

// Ask handles POST /assistant/ask
func (h *AssistantHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := pkghttp.DecodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	reply, err := h.service.Ask(r.Context(), req.Query, req.Context)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, AskResponse{Reply: reply})
}
