// Package ocr converts a stored answer document into page-ordered plain text
// using a vision model, one external call per rasterized page.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/trnhan/paperscore/internal/retry"
	"github.com/trnhan/paperscore/internal/storage"
)

var (
	// ErrUnreadableDocument marks a PDF that cannot be rasterized. Never retried.
	ErrUnreadableDocument = errors.New("document cannot be rasterized")
	// ErrEmptyDocument marks a PDF with zero pages. Never retried.
	ErrEmptyDocument = errors.New("document contains no pages")
)

// TextExtractor is the extraction stage consumed by the worker pipeline.
type TextExtractor interface {
	Extract(ctx context.Context, blobKey string) (string, error)
}

type extractor struct {
	store    storage.ObjectStore
	renderer PageRenderer
	vision   VisionClient
	retryCfg retry.Config
	dpi      float64
}

// NewTextExtractor assembles the extraction stage. retryCfg bounds each
// per-page vision call; dpi fixes the rasterization resolution.
func NewTextExtractor(store storage.ObjectStore, renderer PageRenderer, vision VisionClient, retryCfg retry.Config, dpi float64) TextExtractor {
	return &extractor{
		store:    store,
		renderer: renderer,
		vision:   vision,
		retryCfg: retryCfg,
		dpi:      dpi,
	}
}

// Extract downloads the document, rasterizes every page, and runs the vision
// call per page under the retry policy. A page whose retries are exhausted is
// replaced by a placeholder segment so the remaining pages still come through;
// only an unreadable or empty document fails the stage wholesale.
func (e *extractor) Extract(ctx context.Context, blobKey string) (string, error) {
	body, err := e.store.Download(ctx, blobKey)
	if err != nil {
		return "", fmt.Errorf("fetch document %s: %w", blobKey, err)
	}
	defer body.Close()

	pdf, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read document %s: %w", blobKey, err)
	}

	pages, err := e.renderer.Render(pdf, e.dpi)
	if err != nil {
		return "", err
	}

	texts := make([]string, len(pages))
	for i, image := range pages {
		pageNum := i + 1

		var pageText string
		err := retry.Do(ctx, e.retryCfg, func(ctx context.Context) error {
			text, callErr := e.vision.ExtractPage(ctx, image)
			if callErr != nil {
				return callErr
			}
			pageText = text
			return nil
		})
		if err != nil {
			log.Error().Err(err).Str("blobKey", blobKey).Int("page", pageNum).
				Msg("Page extraction exhausted retries, substituting placeholder")
			texts[i] = fmt.Sprintf("[Error extracting text from page %d]", pageNum)
			continue
		}

		texts[i] = pageText
		log.Debug().Str("blobKey", blobKey).Int("page", pageNum).Msg("Page extracted")
	}

	return strings.Join(texts, "\n\n"), nil
}
