package ocr

import (
	"bytes"
	"fmt"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"
)

// PageRenderer rasterizes every page of a PDF into an image at the given DPI.
type PageRenderer interface {
	Render(pdf []byte, dpi float64) ([][]byte, error)
}

type fitzRenderer struct{}

// NewPageRenderer returns the MuPDF-backed renderer producing JPEG pages.
func NewPageRenderer() PageRenderer {
	return fitzRenderer{}
}

func (fitzRenderer) Render(pdf []byte, dpi float64) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, ErrEmptyDocument
	}

	pages := make([][]byte, 0, pageCount)
	for i := 0; i < pageCount; i++ {
		img, err := doc.ImageDPI(i, dpi)
		if err != nil {
			return nil, fmt.Errorf("%w: render page %d: %v", ErrUnreadableDocument, i+1, err)
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			return nil, fmt.Errorf("%w: encode page %d: %v", ErrUnreadableDocument, i+1, err)
		}
		pages = append(pages, buf.Bytes())
	}

	return pages, nil
}
