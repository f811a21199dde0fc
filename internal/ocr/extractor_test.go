package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/trnhan/paperscore/internal/retry"
	"github.com/trnhan/paperscore/internal/storage"
)

type fakeStore struct {
	blobs map[string][]byte
}

func (f *fakeStore) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if f.blobs == nil {
		f.blobs = map[string][]byte{}
	}
	f.blobs[key] = data
	return nil
}

func (f *fakeStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	delete(f.blobs, key)
	return nil
}

type fakeRenderer struct {
	pages [][]byte
	err   error
}

func (f fakeRenderer) Render(pdf []byte, dpi float64) ([][]byte, error) {
	return f.pages, f.err
}

// fakeVision extracts the page image bytes as text, failing pages listed in
// failing every time.
type fakeVision struct {
	failing map[int]bool
	calls   int
}

func (f *fakeVision) ExtractPage(ctx context.Context, image []byte) (string, error) {
	f.calls++
	page := int(image[0])
	if f.failing[page] {
		return "", errors.New("vision call failed")
	}
	return fmt.Sprintf("text of page %d", page), nil
}

func testRetryCfg() retry.Config {
	return retry.Config{MaxAttempts: 2, BaseDelay: 0}
}

func pages(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte{byte(i + 1)}
	}
	return out
}

func TestExtractJoinsPagesInOrder(t *testing.T) {
	store := &fakeStore{blobs: map[string][]byte{"k": []byte("%PDF")}}
	vision := &fakeVision{}
	e := NewTextExtractor(store, fakeRenderer{pages: pages(3)}, vision, testRetryCfg(), 300)

	got, err := e.Extract(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "text of page 1\n\ntext of page 2\n\ntext of page 3"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtractSubstitutesPlaceholderForExhaustedPage(t *testing.T) {
	store := &fakeStore{blobs: map[string][]byte{"k": []byte("%PDF")}}
	vision := &fakeVision{failing: map[int]bool{2: true}}
	e := NewTextExtractor(store, fakeRenderer{pages: pages(3)}, vision, testRetryCfg(), 300)

	got, err := e.Extract(context.Background(), "k")
	if err != nil {
		t.Fatalf("a single bad page must not fail the document: %v", err)
	}

	segments := strings.Split(got, "\n\n")
	if len(segments) != 3 {
		t.Fatalf("got %d segments, want 3", len(segments))
	}
	if segments[1] != "[Error extracting text from page 2]" {
		t.Errorf("segment 2 = %q, want placeholder", segments[1])
	}
	if segments[0] != "text of page 1" || segments[2] != "text of page 3" {
		t.Errorf("healthy pages corrupted: %v", segments)
	}
}

func TestExtractRetriesEachPage(t *testing.T) {
	store := &fakeStore{blobs: map[string][]byte{"k": []byte("%PDF")}}
	vision := &fakeVision{failing: map[int]bool{1: true}}
	e := NewTextExtractor(store, fakeRenderer{pages: pages(1)}, vision, testRetryCfg(), 300)

	if _, err := e.Extract(context.Background(), "k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vision.calls != 2 {
		t.Errorf("vision calls = %d, want 2", vision.calls)
	}
}

func TestExtractUnreadableDocument(t *testing.T) {
	store := &fakeStore{blobs: map[string][]byte{"k": []byte("not a pdf")}}
	e := NewTextExtractor(store, fakeRenderer{err: ErrUnreadableDocument}, &fakeVision{}, testRetryCfg(), 300)

	_, err := e.Extract(context.Background(), "k")
	if !errors.Is(err, ErrUnreadableDocument) {
		t.Errorf("error = %v, want ErrUnreadableDocument", err)
	}
}

func TestExtractMissingBlob(t *testing.T) {
	e := NewTextExtractor(&fakeStore{}, fakeRenderer{}, &fakeVision{}, testRetryCfg(), 300)

	_, err := e.Extract(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("error = %v, want storage.ErrNotFound", err)
	}
}
