package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
)

const extractionPrompt = "Extract all text from this answer sheet image. " +
	"Preserve structure and formatting. Return only the extracted text without any additional commentary."

// VisionClient performs the external text-extraction call for one page image.
type VisionClient interface {
	ExtractPage(ctx context.Context, image []byte) (string, error)
}

type geminiVision struct {
	model *genai.GenerativeModel
}

// NewGeminiVision wraps the shared genai client's vision model.
func NewGeminiVision(client *genai.Client, modelName string) VisionClient {
	return &geminiVision{model: client.GenerativeModel(modelName)}
}

func (v *geminiVision) ExtractPage(ctx context.Context, image []byte) (string, error) {
	resp, err := v.model.GenerateContent(ctx,
		genai.ImageData("jpeg", image),
		genai.Text(extractionPrompt),
	)
	if err != nil {
		return "", fmt.Errorf("vision call: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("vision call returned no content")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("vision call returned no text content")
	}

	return sb.String(), nil
}
