package nlp

import (
	"context"
	"fmt"
	"math"

	"github.com/google/generative-ai-go/genai"
)

// Embedder produces a dense vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type geminiEmbedder struct {
	model *genai.EmbeddingModel
}

// NewGeminiEmbedder wraps the shared genai client's embedding model.
func NewGeminiEmbedder(client *genai.Client, modelName string) Embedder {
	return &geminiEmbedder{model: client.EmbeddingModel(modelName)}
}

func (e *geminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("embedding model returned no values")
	}
	return res.Embedding.Values, nil
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// either vector is empty or zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
