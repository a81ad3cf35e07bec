// Package assistant answers campus questions through Gemini. The portal core
// only hands it the query and a plain-text summary of campus data.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BradenHooton/uniplus/internal/config"
	"github.com/BradenHooton/uniplus/internal/models"
	"google.golang.org/genai"
)

// FallbackReply is returned instead of an error when the model call fails
const FallbackReply = "I'm sorry, I'm having trouble connecting to the campus brain right now. Please try again later."

const systemTemplate = `You are "EduBot", a smart campus assistant for a university.
University Data: %s
Instructions: Be helpful, concise, and professional. If you don't know something from the provided context, suggest they contact the administration. Use markdown for formatting.`

// Generator produces one text completion
type Generator interface {
	Generate(ctx context.Context, model, prompt, systemInstruction string) (string, error)
}

type genaiGenerator struct {
	client *genai.Client
}

func (g *genaiGenerator) Generate(ctx context.Context, model, prompt, systemInstruction string) (string, error) {
	res, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		ThinkingConfig:    &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)},
	})
	if err != nil {
		return "", err
	}
	if res == nil {
		return "", fmt.Errorf("empty generate result")
	}
	return res.Text(), nil
}

type Service struct {
	generator Generator
	model     string
	logger    *slog.Logger
}

// NewService connects to Gemini when an API key is configured. Without a key
// the service is still returned and every Ask reports models.ErrKeyNotFound.
func NewService(ctx context.Context, cfg config.AssistantConfig, logger *slog.Logger) (*Service, error) {
	if cfg.APIKey == "" {
		logger.Warn("GEMINI_API_KEY not set, assistant disabled")
		return &Service{model: cfg.Model, logger: logger}, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return NewServiceWithGenerator(&genaiGenerator{client: client}, cfg.Model, logger), nil
}

func NewServiceWithGenerator(generator Generator, model string, logger *slog.Logger) *Service {
	return &Service{generator: generator, model: model, logger: logger}
}

// Enabled reports whether a model backend is configured
func (s *Service) Enabled() bool {
	return s.generator != nil
}

// Ask answers query using campusContext as grounding data
func (s *Service) Ask(ctx context.Context, query, campusContext string) (string, error) {
	if s.generator == nil {
		return "", models.ErrKeyNotFound
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("%w: query is required", models.ErrBadRequest)
	}

	reply, err := s.generator.Generate(ctx, s.model, "User Query: "+query, fmt.Sprintf(systemTemplate, campusContext))
	if err != nil {
		s.logger.Error("assistant request failed", slog.String("model", s.model), slog.Any("error", err))
		return FallbackReply, nil
	}
	if strings.TrimSpace(reply) == "" {
		return FallbackReply, nil
	}
	return reply, nil
}
