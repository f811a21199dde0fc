package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"github.com/trnhan/paperscore/internal/model"
	"github.com/trnhan/paperscore/internal/repository"
	"github.com/trnhan/paperscore/internal/service"
	"github.com/trnhan/paperscore/internal/storage"
)

type fakeSchemeRepo struct {
	mu      sync.Mutex
	schemes map[uint]*model.GradingScheme
}

func newFakeSchemeRepo(schemes ...*model.GradingScheme) *fakeSchemeRepo {
	repo := &fakeSchemeRepo{schemes: map[uint]*model.GradingScheme{}}
	for _, s := range schemes {
		repo.schemes[s.ID] = s
	}
	return repo
}

func (r *fakeSchemeRepo) Create(s *model.GradingScheme) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemes[s.ID] = s
	return nil
}

func (r *fakeSchemeRepo) FindByID(id uint) (*model.GradingScheme, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schemes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *fakeSchemeRepo) FindByTeacher(teacherID uint, page, limit int) ([]model.GradingScheme, int64, error) {
	return nil, 0, nil
}

func (r *fakeSchemeRepo) Update(s *model.GradingScheme) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *s
	r.schemes[s.ID] = &copied
	return nil
}

func (r *fakeSchemeRepo) Delete(id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.schemes[id]
	delete(r.schemes, id)
	return ok, nil
}

type fakeSheetRepo struct {
	mu     sync.Mutex
	sheets map[uint]*model.AnswerSheet
}

func newFakeSheetRepo(sheets ...*model.AnswerSheet) *fakeSheetRepo {
	repo := &fakeSheetRepo{sheets: map[uint]*model.AnswerSheet{}}
	for _, s := range sheets {
		repo.sheets[s.ID] = s
	}
	return repo
}

func (r *fakeSheetRepo) Create(s *model.AnswerSheet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sheets[s.ID] = s
	return nil
}

func (r *fakeSheetRepo) CreateBatch(sheets []model.AnswerSheet) error {
	for i := range sheets {
		if err := r.Create(&sheets[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeSheetRepo) FindByID(id uint) (*model.AnswerSheet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sheets[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *fakeSheetRepo) FindByTeacher(teacherID uint, filter repository.SheetFilter, page, limit int) ([]model.AnswerSheet, int64, error) {
	return nil, 0, nil
}

func (r *fakeSheetRepo) Update(s *model.AnswerSheet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *s
	r.sheets[s.ID] = &copied
	return nil
}

func (r *fakeSheetRepo) Delete(id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sheets[id]
	delete(r.sheets, id)
	return ok, nil
}

func (r *fakeSheetRepo) get(id uint) *model.AnswerSheet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sheets[id]
}

type fakeResultRepo struct {
	mu      sync.Mutex
	results map[uint]*model.Result
}

func newFakeResultRepo(results ...*model.Result) *fakeResultRepo {
	repo := &fakeResultRepo{results: map[uint]*model.Result{}}
	for _, res := range results {
		repo.results[res.SheetID] = res
	}
	return repo
}

func (r *fakeResultRepo) Create(res *model.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.results[res.SheetID]; exists {
		return errors.New("duplicate result for sheet")
	}
	r.results[res.SheetID] = res
	return nil
}

func (r *fakeResultRepo) FindBySheetID(sheetID uint) (*model.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[sheetID]
	if !ok {
		return nil, nil
	}
	copied := *res
	return &copied, nil
}

func (r *fakeResultRepo) FindByScheme(schemeID uint, page, limit int) ([]model.Result, int64, error) {
	return nil, 0, nil
}

func (r *fakeResultRepo) Statistics(schemeID uint) (*repository.SchemeStatistics, error) {
	return &repository.SchemeStatistics{}, nil
}

func (r *fakeResultRepo) DeleteBySheetID(sheetID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.results[sheetID]
	delete(r.results, sheetID)
	return ok, nil
}

func (r *fakeResultRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

// fakeExtractor returns per-key canned text or an error. Keys in transient
// fail that many times before succeeding.
type fakeExtractor struct {
	mu        sync.Mutex
	texts     map[string]string
	errs      map[string]error
	transient map[string]int
	calls     int
}

func (f *fakeExtractor) Extract(ctx context.Context, blobKey string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if n, ok := f.transient[blobKey]; ok && n > 0 {
		f.transient[blobKey] = n - 1
		return "", errors.New("transient vision failure")
	}
	if err, ok := f.errs[blobKey]; ok {
		return "", err
	}
	if text, ok := f.texts[blobKey]; ok {
		return text, nil
	}
	return "extracted text", nil
}

type fakeKeywordExtractor struct {
	keywords []string
	err      error
}

func (f *fakeKeywordExtractor) Keywords(text string) ([]string, error) {
	return f.keywords, f.err
}

type fakeScorer struct {
	eval *service.Evaluation
	err  error
}

func (f *fakeScorer) Score(ctx context.Context, studentText, modelText string, modelKeywords []string, totalMarks int) (*service.Evaluation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.eval, nil
}

func readyScheme(id uint) *model.GradingScheme {
	text := "model answer text"
	return &model.GradingScheme{
		ID:           id,
		TotalMarks:   100,
		ModelBlobKey: fmt.Sprintf("schemes/%d.pdf", id),
		ModelText:    &text,
		Keywords:     []string{"gravity"},
		Status:       model.SchemeReady,
	}
}

func pendingSheet(id, schemeID uint) *model.AnswerSheet {
	return &model.AnswerSheet{
		ID:            id,
		SchemeID:      schemeID,
		AnswerBlobKey: fmt.Sprintf("sheets/%d.pdf", id),
		Status:        model.SheetPending,
	}
}

func passingEvaluation() *service.Evaluation {
	return &service.Evaluation{
		RawScore:        68,
		MaxScore:        100,
		Percentage:      68.0,
		SimilarityScore: 0.8,
		KeywordScore:    0.5,
		Feedback:        "Good work.",
	}
}

func TestPrepareSchemeSuccess(t *testing.T) {
	scheme := &model.GradingScheme{ID: 1, ModelBlobKey: "schemes/1.pdf", Status: model.SchemeProcessing}
	schemes := newFakeSchemeRepo(scheme)
	p := NewProcessor(schemes, newFakeSheetRepo(), newFakeResultRepo(),
		&fakeExtractor{texts: map[string]string{"schemes/1.pdf": "the model answer"}},
		&fakeKeywordExtractor{keywords: []string{"answer", "model"}},
		&fakeScorer{}, 5, 0, 0)

	if err := p.PrepareScheme(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := schemes.FindByID(1)
	if got.Status != model.SchemeReady {
		t.Errorf("status = %s, want ready", got.Status)
	}
	if got.ModelText == nil || *got.ModelText != "the model answer" {
		t.Errorf("ModelText = %v", got.ModelText)
	}
	if len(got.Keywords) != 2 {
		t.Errorf("Keywords = %v", got.Keywords)
	}
	if got.ErrorDetail != nil {
		t.Errorf("ErrorDetail = %v, want nil", *got.ErrorDetail)
	}
}

func TestPrepareSchemeAlreadyReady(t *testing.T) {
	extractor := &fakeExtractor{}
	schemes := newFakeSchemeRepo(readyScheme(1))
	p := NewProcessor(schemes, newFakeSheetRepo(), newFakeResultRepo(),
		extractor, &fakeKeywordExtractor{}, &fakeScorer{}, 5, 0, 0)

	if err := p.PrepareScheme(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if extractor.calls != 0 {
		t.Errorf("extractor called %d times for a ready scheme", extractor.calls)
	}
}

func TestPrepareSchemeExtractionFailure(t *testing.T) {
	scheme := &model.GradingScheme{ID: 1, ModelBlobKey: "schemes/1.pdf", Status: model.SchemeProcessing}
	schemes := newFakeSchemeRepo(scheme)
	cause := errors.New("vision outage")
	p := NewProcessor(schemes, newFakeSheetRepo(), newFakeResultRepo(),
		&fakeExtractor{errs: map[string]error{"schemes/1.pdf": cause}},
		&fakeKeywordExtractor{}, &fakeScorer{}, 5, 0, 0)

	err := p.PrepareScheme(context.Background(), 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, asynq.SkipRetry) {
		t.Error("transient failure must stay retryable")
	}

	got, _ := schemes.FindByID(1)
	if got.Status != model.SchemeFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.ErrorDetail == nil {
		t.Error("ErrorDetail not recorded")
	}
}

func TestPrepareSchemeMissing(t *testing.T) {
	p := NewProcessor(newFakeSchemeRepo(), newFakeSheetRepo(), newFakeResultRepo(),
		&fakeExtractor{}, &fakeKeywordExtractor{}, &fakeScorer{}, 5, 0, 0)

	err := p.PrepareScheme(context.Background(), 99)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Errorf("missing scheme must not be retried, got %v", err)
	}
}

func TestEvaluateSheetSuccess(t *testing.T) {
	schemes := newFakeSchemeRepo(readyScheme(1))
	sheets := newFakeSheetRepo(pendingSheet(10, 1))
	results := newFakeResultRepo()
	p := NewProcessor(schemes, sheets, results,
		&fakeExtractor{}, &fakeKeywordExtractor{}, &fakeScorer{eval: passingEvaluation()}, 5, 0, 0)

	if err := p.EvaluateSheet(context.Background(), 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sheet := sheets.get(10)
	if sheet.Status != model.SheetCompleted {
		t.Errorf("status = %s, want completed", sheet.Status)
	}
	if sheet.ProcessedAt == nil {
		t.Error("ProcessedAt not set")
	}
	if sheet.ExtractedText == nil {
		t.Error("ExtractedText not persisted")
	}

	result, _ := results.FindBySheetID(10)
	if result == nil {
		t.Fatal("result not created")
	}
	if result.RawScore != 68 || result.SchemeID != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestEvaluateSheetIdempotent(t *testing.T) {
	schemes := newFakeSchemeRepo(readyScheme(1))
	sheet := pendingSheet(10, 1)
	sheet.Status = model.SheetCompleted
	sheets := newFakeSheetRepo(sheet)
	results := newFakeResultRepo(&model.Result{SheetID: 10, SchemeID: 1, RawScore: 50})
	extractor := &fakeExtractor{}
	p := NewProcessor(schemes, sheets, results,
		extractor, &fakeKeywordExtractor{}, &fakeScorer{eval: passingEvaluation()}, 5, 0, 0)

	if err := p.EvaluateSheet(context.Background(), 10); err != nil {
		t.Fatalf("re-evaluation must be a no-op success: %v", err)
	}
	if extractor.calls != 0 {
		t.Errorf("extractor called %d times for an already graded sheet", extractor.calls)
	}
	if results.count() != 1 {
		t.Errorf("results = %d, want exactly 1", results.count())
	}

	result, _ := results.FindBySheetID(10)
	if result.RawScore != 50 {
		t.Errorf("original result overwritten: %+v", result)
	}
}

// flakySheetRepo fails the next failCompleted updates that would persist the
// completed status, simulating a crash between result write and completion.
type flakySheetRepo struct {
	*fakeSheetRepo
	failCompleted int
}

func (r *flakySheetRepo) Update(s *model.AnswerSheet) error {
	if s.Status == model.SheetCompleted && r.failCompleted > 0 {
		r.failCompleted--
		return errors.New("connection reset by peer")
	}
	return r.fakeSheetRepo.Update(s)
}

func TestEvaluateSheetRepairsInterruptedCompletion(t *testing.T) {
	schemes := newFakeSchemeRepo(readyScheme(1))
	sheets := &flakySheetRepo{fakeSheetRepo: newFakeSheetRepo(pendingSheet(10, 1)), failCompleted: 1}
	results := newFakeResultRepo()
	p := NewProcessor(schemes, sheets, results,
		&fakeExtractor{}, &fakeKeywordExtractor{}, &fakeScorer{eval: passingEvaluation()}, 5, 0, 0)

	// The completion write fails after the result is persisted.
	if err := p.EvaluateSheet(context.Background(), 10); err == nil {
		t.Fatal("expected error from the interrupted completion write")
	}
	if results.count() != 1 {
		t.Fatalf("results = %d, want 1", results.count())
	}
	if got := sheets.get(10); got.Status != model.SheetProcessing {
		t.Fatalf("status after interruption = %s, want processing", got.Status)
	}

	// The queue runner's retry must finish the transition, not skip it.
	if err := p.EvaluateSheet(context.Background(), 10); err != nil {
		t.Fatalf("retry must repair the sheet: %v", err)
	}

	sheet := sheets.get(10)
	if sheet.Status != model.SheetCompleted {
		t.Errorf("status after retry = %s, want completed", sheet.Status)
	}
	if sheet.ProcessedAt == nil {
		t.Error("ProcessedAt not set by the repair")
	}
	if results.count() != 1 {
		t.Errorf("results = %d, want exactly 1", results.count())
	}
}

func TestEvaluateSheetGradedSheetIgnoresMissingScheme(t *testing.T) {
	// The graded check runs before the readiness guard: a sheet with a
	// persisted result reaches completed even if its scheme is gone.
	sheet := pendingSheet(10, 1)
	sheet.Status = model.SheetProcessing
	sheets := newFakeSheetRepo(sheet)
	results := newFakeResultRepo(&model.Result{SheetID: 10, SchemeID: 1, RawScore: 68})
	p := NewProcessor(newFakeSchemeRepo(), sheets, results,
		&fakeExtractor{}, &fakeKeywordExtractor{}, &fakeScorer{eval: passingEvaluation()}, 5, 0, 0)

	if err := p.EvaluateSheet(context.Background(), 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := sheets.get(10); got.Status != model.SheetCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
}

func TestEvaluateSheetSchemeNotReady(t *testing.T) {
	scheme := readyScheme(1)
	scheme.Status = model.SchemeProcessing
	scheme.ModelText = nil
	schemes := newFakeSchemeRepo(scheme)
	sheets := newFakeSheetRepo(pendingSheet(10, 1))
	p := NewProcessor(schemes, sheets, newFakeResultRepo(),
		&fakeExtractor{}, &fakeKeywordExtractor{}, &fakeScorer{eval: passingEvaluation()}, 5, 0, 0)

	err := p.EvaluateSheet(context.Background(), 10)
	if !errors.Is(err, ErrSchemeNotReady) {
		t.Fatalf("error = %v, want ErrSchemeNotReady", err)
	}
	if !errors.Is(err, asynq.SkipRetry) {
		t.Error("precondition failure must not be retried")
	}

	// The sheet itself did nothing wrong and keeps its status.
	if got := sheets.get(10); got.Status != model.SheetPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
}

func TestEvaluateSheetScoringFailure(t *testing.T) {
	schemes := newFakeSchemeRepo(readyScheme(1))
	sheets := newFakeSheetRepo(pendingSheet(10, 1))
	p := NewProcessor(schemes, sheets, newFakeResultRepo(),
		&fakeExtractor{}, &fakeKeywordExtractor{},
		&fakeScorer{err: errors.New("embedding service down")}, 5, 0, 0)

	if err := p.EvaluateSheet(context.Background(), 10); err == nil {
		t.Fatal("expected error")
	}

	sheet := sheets.get(10)
	if sheet.Status != model.SheetFailed {
		t.Errorf("status = %s, want failed", sheet.Status)
	}
	if sheet.ErrorDetail == nil {
		t.Error("ErrorDetail not recorded")
	}
	if sheet.ProcessedAt == nil {
		t.Error("ProcessedAt not set on failure")
	}
}

func TestEvaluateManyWindowsAndFailureIsolation(t *testing.T) {
	schemes := newFakeSchemeRepo(readyScheme(1))
	results := newFakeResultRepo()

	var ids []uint
	sheets := newFakeSheetRepo()
	for id := uint(1); id <= 12; id++ {
		_ = sheets.Create(pendingSheet(id, 1))
		ids = append(ids, id)
	}

	// Sheet 3's document never extracts; everyone else succeeds.
	extractor := &fakeExtractor{errs: map[string]error{"sheets/3.pdf": errors.New("vision outage")}}
	p := NewProcessor(schemes, sheets, results,
		extractor, &fakeKeywordExtractor{}, &fakeScorer{eval: passingEvaluation()}, 5, 0, 0)

	failed := p.EvaluateMany(context.Background(), ids)
	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
	if results.count() != 11 {
		t.Errorf("results = %d, want 11", results.count())
	}
	if got := sheets.get(3); got.Status != model.SheetFailed {
		t.Errorf("sheet 3 status = %s, want failed", got.Status)
	}
	if got := sheets.get(12); got.Status != model.SheetCompleted {
		t.Errorf("sheet 12 status = %s, want completed", got.Status)
	}
}

func TestEvaluateManyRetriesTransientMember(t *testing.T) {
	schemes := newFakeSchemeRepo(readyScheme(1))
	results := newFakeResultRepo()
	sheets := newFakeSheetRepo()
	for id := uint(1); id <= 3; id++ {
		_ = sheets.Create(pendingSheet(id, 1))
	}

	// Sheet 2's extraction fails twice, then recovers. With the same retry
	// budget a single submission gets, the member must still complete.
	extractor := &fakeExtractor{transient: map[string]int{"sheets/2.pdf": 2}}
	p := NewProcessor(schemes, sheets, results,
		extractor, &fakeKeywordExtractor{}, &fakeScorer{eval: passingEvaluation()}, 5, 3, 0)

	failed := p.EvaluateMany(context.Background(), []uint{1, 2, 3})
	if failed != 0 {
		t.Errorf("failed = %d, want 0", failed)
	}
	if results.count() != 3 {
		t.Errorf("results = %d, want 3", results.count())
	}
	if got := sheets.get(2); got.Status != model.SheetCompleted {
		t.Errorf("sheet 2 status = %s, want completed", got.Status)
	}
}

func TestEvaluateManyStopsRetryingPermanentMember(t *testing.T) {
	schemes := newFakeSchemeRepo(readyScheme(1))
	sheets := newFakeSheetRepo(pendingSheet(1, 1))
	extractor := &fakeExtractor{errs: map[string]error{"sheets/1.pdf": storage.ErrNotFound}}
	p := NewProcessor(schemes, sheets, newFakeResultRepo(),
		extractor, &fakeKeywordExtractor{}, &fakeScorer{eval: passingEvaluation()}, 5, 3, 0)

	failed := p.EvaluateMany(context.Background(), []uint{1})
	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
	if extractor.calls != 1 {
		t.Errorf("extractor calls = %d, want 1 (missing blob must not be retried)", extractor.calls)
	}
	if got := sheets.get(1); got.Status != model.SheetFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
}

func TestPartition(t *testing.T) {
	cases := []struct {
		n, size int
		want    []int
	}{
		{12, 5, []int{5, 5, 2}},
		{5, 5, []int{5}},
		{3, 5, []int{3}},
		{0, 5, nil},
		{4, 0, []int{1, 1, 1, 1}},
	}

	for _, tc := range cases {
		ids := make([]uint, tc.n)
		for i := range ids {
			ids[i] = uint(i + 1)
		}
		windows := partition(ids, tc.size)
		if len(windows) != len(tc.want) {
			t.Errorf("n=%d size=%d: %d windows, want %d", tc.n, tc.size, len(windows), len(tc.want))
			continue
		}
		for i, w := range windows {
			if len(w) != tc.want[i] {
				t.Errorf("n=%d size=%d window %d: len %d, want %d", tc.n, tc.size, i, len(w), tc.want[i])
			}
		}
	}
}
