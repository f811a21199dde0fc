package service

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/trnhan/paperscore/config"
	"github.com/trnhan/paperscore/internal/nlp"
)

// Evaluation carries the full scoring outcome for one answer.
type Evaluation struct {
	RawScore        int
	MaxScore        int
	Percentage      float64
	SimilarityScore float64
	KeywordScore    float64
	Feedback        string
}

// ScoringService blends semantic similarity and keyword coverage into a mark
// and produces narrative feedback.
type ScoringService interface {
	Score(ctx context.Context, studentText, modelText string, modelKeywords []string, totalMarks int) (*Evaluation, error)
}

type scoringService struct {
	embedder nlp.Embedder
	keywords nlp.KeywordExtractor
	feedback FeedbackGenerator
	weights  config.Scoring
}

func NewScoringService(embedder nlp.Embedder, keywords nlp.KeywordExtractor, feedback FeedbackGenerator, weights config.Scoring) ScoringService {
	return &scoringService{
		embedder: embedder,
		keywords: keywords,
		feedback: feedback,
		weights:  weights,
	}
}

func (s *scoringService) Score(ctx context.Context, studentText, modelText string, modelKeywords []string, totalMarks int) (*Evaluation, error) {
	studentVec, err := s.embedder.Embed(ctx, studentText)
	if err != nil {
		return nil, fmt.Errorf("embed student answer: %w", err)
	}
	modelVec, err := s.embedder.Embed(ctx, modelText)
	if err != nil {
		return nil, fmt.Errorf("embed model answer: %w", err)
	}
	similarity := nlp.CosineSimilarity(studentVec, modelVec)

	studentKeywords, err := s.keywords.Keywords(studentText)
	if err != nil {
		return nil, fmt.Errorf("extract student keywords: %w", err)
	}
	keywordScore := keywordCoverage(modelKeywords, studentKeywords)

	hybrid := similarity*s.weights.SimilarityWeight + keywordScore*s.weights.KeywordWeight

	rawScore := int(math.Round(hybrid * float64(totalMarks)))
	if rawScore < 0 {
		rawScore = 0
	}
	if rawScore > totalMarks {
		rawScore = totalMarks
	}

	percentage := 0.0
	if totalMarks > 0 {
		percentage = roundTo(float64(rawScore)/float64(totalMarks)*100, 2)
	}

	feedback, err := s.feedback.Generate(ctx, studentText, modelText, similarity, keywordScore)
	if err != nil {
		// Scoring never fails because narrative generation failed.
		log.Warn().Err(err).Msg("Feedback generation failed, using fallback template")
		feedback = fallbackFeedback(similarity, keywordScore)
	}

	return &Evaluation{
		RawScore:        rawScore,
		MaxScore:        totalMarks,
		Percentage:      percentage,
		SimilarityScore: roundTo(similarity, 4),
		KeywordScore:    roundTo(keywordScore, 4),
		Feedback:        feedback,
	}, nil
}

// keywordCoverage is the fraction of model keywords present in the student
// set. Defined as 0 for an empty model set.
func keywordCoverage(modelKeywords, studentKeywords []string) float64 {
	if len(modelKeywords) == 0 {
		return 0.0
	}

	studentSet := make(map[string]struct{}, len(studentKeywords))
	for _, kw := range studentKeywords {
		studentSet[kw] = struct{}{}
	}

	matched := 0
	for _, kw := range modelKeywords {
		if _, ok := studentSet[kw]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(modelKeywords))
}

func fallbackFeedback(similarity, keyword float64) string {
	return fmt.Sprintf(
		"Answer evaluated with %.1f%% semantic similarity and %.1f%% keyword coverage. "+
			"Review your answer against the model answer for improvement areas.",
		similarity*100, keyword*100,
	)
}

func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
