package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
)

// excerptLimit bounds how much of each text is sent to the narrative model.
const excerptLimit = 1000

// FeedbackGenerator produces the narrative feedback for a scored answer.
// Failures are handled by the scoring service, never propagated to the job.
type FeedbackGenerator interface {
	Generate(ctx context.Context, studentText, modelText string, similarity, keyword float64) (string, error)
}

type geminiFeedback struct {
	model *genai.GenerativeModel
}

// NewGeminiFeedback wraps the shared genai client's text model.
func NewGeminiFeedback(client *genai.Client, modelName string) FeedbackGenerator {
	model := client.GenerativeModel(modelName)
	model.SystemInstruction = genai.NewUserContent(genai.Text(
		"You are an educational assistant providing constructive feedback on student answers.",
	))
	return &geminiFeedback{model: model}
}

func (f *geminiFeedback) Generate(ctx context.Context, studentText, modelText string, similarity, keyword float64) (string, error) {
	prompt := fmt.Sprintf(`Compare the student answer with the model answer. Provide constructive feedback highlighting strengths and areas for improvement.

Model Answer:
%s

Student Answer:
%s

Metrics:
- Semantic Similarity: %.2f%%
- Keyword Coverage: %.2f%%

Provide feedback in 3-4 sentences focusing on:
1. What the student did well
2. What key concepts or keywords were missed
3. Specific areas for improvement`,
		truncate(modelText, excerptLimit),
		truncate(studentText, excerptLimit),
		similarity*100,
		keyword*100,
	)

	resp, err := f.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("feedback call: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("feedback call returned no content")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("feedback call returned no text content")
	}
	return strings.TrimSpace(sb.String()), nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
