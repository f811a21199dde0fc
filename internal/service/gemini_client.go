package service

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/trnhan/paperscore/config"
)

// NewGeminiClient creates the process-wide genai client shared by the vision,
// text, and embedding models. Constructed once by fx and closed on shutdown.
func NewGeminiClient(cfg *config.Config) (*genai.Client, error) {
	if cfg.Gemini.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.Gemini.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}
	return client, nil
}
