package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"server/internal/domain"
)

type memorySubmissions struct {
	mu   sync.Mutex
	subs map[string]*domain.Submission
}

func newMemorySubmissions(subs ...*domain.Submission) *memorySubmissions {
	m := &memorySubmissions{subs: make(map[string]*domain.Submission)}
	for _, sub := range subs {
		copied := *sub
		m.subs[sub.ID] = &copied
	}
	return m
}

func (m *memorySubmissions) Create(ctx context.Context, sub *domain.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *sub
	m.subs[sub.ID] = &copied
	return nil
}

func (m *memorySubmissions) GetByID(ctx context.Context, id string) (*domain.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *sub
	return &copied, nil
}

func (m *memorySubmissions) UpdateStatus(ctx context.Context, id string, status domain.SubmissionStatus, patch *domain.SubmissionPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok {
		return domain.ErrNotFound
	}
	sub.Status = status
	if patch != nil {
		if patch.SummaryText != nil {
			sub.SummaryText = *patch.SummaryText
		}
		if patch.AudioFileURL != nil {
			sub.AudioFileURL = *patch.AudioFileURL
		}
		if patch.ErrorMessage != nil {
			sub.ErrorMessage = *patch.ErrorMessage
		}
		if patch.ProcessedAt != nil {
			sub.ProcessedAt = patch.ProcessedAt
		}
	}
	return nil
}

func (m *memorySubmissions) ListByStatus(ctx context.Context, status domain.SubmissionStatus, limit int) ([]domain.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Submission
	for _, sub := range m.subs {
		if sub.Status == status {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (m *memorySubmissions) ClaimPending(ctx context.Context) (*domain.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subs {
		if sub.Status == domain.SubmissionStatusPending {
			sub.Status = domain.SubmissionStatusProcessing
			copied := *sub
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

type memoryFeed struct {
	mu          sync.Mutex
	entries     []domain.FeedEntry
	createCalls int
	failFirst   int
}

func (m *memoryFeed) Create(ctx context.Context, entry *domain.FeedEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createCalls <= m.failFirst {
		return errors.New("connection refused")
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryFeed) ListRecent(ctx context.Context, limit int) ([]domain.FeedEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.FeedEntry(nil), m.entries...), nil
}

func (m *memoryFeed) GetBySubmissionID(ctx context.Context, submissionID string) (*domain.FeedEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range m.entries {
		if entry.SubmissionID == submissionID {
			copied := entry
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

type blobEntry struct {
	data        []byte
	contentType string
}

type memoryBlobs struct {
	mu    sync.Mutex
	blobs map[string]blobEntry
}

func newMemoryBlobs() *memoryBlobs {
	return &memoryBlobs{blobs: make(map[string]blobEntry)}
}

func (m *memoryBlobs) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = blobEntry{data: append([]byte(nil), data...), contentType: contentType}
	return key, nil
}

func (m *memoryBlobs) Get(ctx context.Context, key string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.blobs[key]
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	return append([]byte(nil), entry.data...), entry.contentType, nil
}

func (m *memoryBlobs) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

type fakeSummarizer struct {
	mu        sync.Mutex
	calls     int
	lastInput string
	result    *SummaryResult
	err       error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, prompt string) (*SummaryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastInput = prompt
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		copied := *f.result
		return &copied, nil
	}
	return &SummaryResult{Summary: "Hello World Summary"}, nil
}

type fakeSynthesizer struct {
	mu       sync.Mutex
	calls    int
	lastText string
	err      error
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, submissionID, text string) (*AudioArtifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastText = text
	if f.err != nil {
		return nil, f.err
	}
	return &AudioArtifact{
		StorageKey: "submissions/" + submissionID + "/tts.wav",
		MimeType:   "audio/wav",
		Size:       128,
	}, nil
}

type testHarness struct {
	submissions *memorySubmissions
	feed        *memoryFeed
	blobs       *memoryBlobs
	checkpoints *MemoryCheckpointStore
	summarizer  *fakeSummarizer
	synthesizer *fakeSynthesizer
}

func newTestHarness(t *testing.T, sub *domain.Submission) *testHarness {
	t.Helper()
	h := &testHarness{
		submissions: newMemorySubmissions(sub),
		feed:        &memoryFeed{},
		blobs:       newMemoryBlobs(),
		checkpoints: NewMemoryCheckpointStore(),
		summarizer:  &fakeSummarizer{},
		synthesizer: &fakeSynthesizer{},
	}
	return h
}

func (h *testHarness) orchestrator(t *testing.T, opts ...func(*OrchestratorOptions)) *Orchestrator {
	t.Helper()
	options := OrchestratorOptions{
		Submissions: h.submissions,
		Feed:        h.feed,
		Blobs:       h.blobs,
		Checkpoints: h.checkpoints,
		Summarizer:  h.summarizer,
		Synthesizer: h.synthesizer,
		Logger:      discardLogger(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	o, err := NewOrchestrator(options)
	if err != nil {
		t.Fatalf("NewOrchestrator returned error: %v", err)
	}
	return o
}

func (h *testHarness) storePayload(t *testing.T, sub *domain.Submission, payload domain.SubmissionPayload) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if _, err := h.blobs.Put(context.Background(), sub.PayloadKey, data, "application/json"); err != nil {
		t.Fatalf("store payload: %v", err)
	}
}

func pendingSubmission(id string) *domain.Submission {
	return &domain.Submission{
		ID:         id,
		SourceURL:  "https://youtube.com/watch?v=abc",
		Title:      "T",
		PayloadKey: "submissions/" + id + "/submission.json",
		Status:     domain.SubmissionStatusPending,
	}
}

func TestOrchestratorHappyPath(t *testing.T) {
	sub := pendingSubmission("sub-1")
	h := newTestHarness(t, sub)
	h.storePayload(t, sub, domain.SubmissionPayload{
		SourceURL:    sub.SourceURL,
		YoutubeVideo: &domain.VideoContent{Title: "T", Author: "A", Captions: "hello world"},
	})
	h.summarizer.result = &SummaryResult{Summary: "Hello World Summary", Raw: []byte(`{"candidates":[]}`)}

	o := h.orchestrator(t)
	if err := o.Run(context.Background(), sub.ID); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	wantPrompt := "Summarize the following video caption for \"T\" by A:\n\nhello world"
	if h.summarizer.lastInput != wantPrompt {
		t.Fatalf("summarizer prompt = %q, want %q", h.summarizer.lastInput, wantPrompt)
	}
	if h.synthesizer.lastText != "Hello World Summary" {
		t.Fatalf("synthesizer text = %q", h.synthesizer.lastText)
	}

	got, err := h.submissions.GetByID(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != domain.SubmissionStatusCompleted {
		t.Fatalf("status = %q, want completed", got.Status)
	}
	if got.SummaryText != "Hello World Summary" {
		t.Fatalf("summary text = %q", got.SummaryText)
	}
	if got.AudioFileURL != "submissions/sub-1/tts.wav" {
		t.Fatalf("audio file url = %q", got.AudioFileURL)
	}
	if got.ProcessedAt == nil {
		t.Fatalf("processed at not set")
	}

	entry, err := h.feed.GetBySubmissionID(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("feed entry missing: %v", err)
	}
	if entry.Title != "T" || entry.SummaryText != "Hello World Summary" {
		t.Fatalf("feed entry = %+v", entry)
	}

	// Side artifacts land next to the payload.
	if _, _, err := h.blobs.Get(context.Background(), "submissions/sub-1/llm_response.json"); err != nil {
		t.Fatalf("llm response artifact missing: %v", err)
	}
	if data, _, err := h.blobs.Get(context.Background(), "submissions/sub-1/clean_summary.txt"); err != nil {
		t.Fatalf("clean summary artifact missing: %v", err)
	} else if string(data) != "Hello World Summary" {
		t.Fatalf("clean summary = %q", data)
	}

	for _, stage := range []string{StageRetrieve, StageSummarize, StageSynthesize, StagePersist} {
		has, err := h.checkpoints.Has(context.Background(), sub.ID, stage)
		if err != nil || !has {
			t.Fatalf("stage %s not checkpointed (has=%v err=%v)", stage, has, err)
		}
	}
}

func TestOrchestratorReplaySkipsCheckpointedStages(t *testing.T) {
	sub := pendingSubmission("sub-1")
	h := newTestHarness(t, sub)
	h.storePayload(t, sub, domain.SubmissionPayload{
		YoutubeVideo: &domain.VideoContent{Title: "T", Author: "A", Captions: "hello world"},
	})

	// First invocation dies at synthesize.
	h.synthesizer.err = errors.New("tts provider down")
	o := h.orchestrator(t)
	err := o.Run(context.Background(), sub.ID)
	if err == nil || !strings.Contains(err.Error(), "stage synthesize") {
		t.Fatalf("first run err = %v, want synthesize stage failure", err)
	}
	if h.summarizer.calls != 1 {
		t.Fatalf("summarizer calls after first run = %d, want 1", h.summarizer.calls)
	}

	// The process comes back, the row is still processing (the failed mark is
	// rolled back to simulate a crash before it was written), the checkpoints
	// survive. Retrieve and summarize must be replayed, not re-executed.
	if err := h.submissions.UpdateStatus(context.Background(), sub.ID, domain.SubmissionStatusProcessing, nil); err != nil {
		t.Fatalf("reset status: %v", err)
	}
	h.synthesizer.err = nil
	if err := o.Run(context.Background(), sub.ID); err != nil {
		t.Fatalf("second run returned error: %v", err)
	}

	if h.summarizer.calls != 1 {
		t.Fatalf("summarizer calls after replay = %d, want still 1", h.summarizer.calls)
	}
	if h.synthesizer.calls != 2 {
		t.Fatalf("synthesizer calls = %d, want 2 (one failure, one success)", h.synthesizer.calls)
	}

	got, _ := h.submissions.GetByID(context.Background(), sub.ID)
	if got.Status != domain.SubmissionStatusCompleted {
		t.Fatalf("status = %q, want completed", got.Status)
	}
	if h.feed.createCalls != 1 {
		t.Fatalf("feed create calls = %d, want 1", h.feed.createCalls)
	}
}

func TestOrchestratorMissingPayloadFailsRun(t *testing.T) {
	sub := pendingSubmission("sub-1")
	h := newTestHarness(t, sub)
	// No payload stored.

	o := h.orchestrator(t)
	err := o.Run(context.Background(), sub.ID)
	if !errors.Is(err, domain.ErrPayloadMissing) {
		t.Fatalf("err = %v, want ErrPayloadMissing", err)
	}

	got, _ := h.submissions.GetByID(context.Background(), sub.ID)
	if got.Status != domain.SubmissionStatusFailed {
		t.Fatalf("status = %q, want failed", got.Status)
	}
	if !strings.Contains(got.ErrorMessage, "stage retrieve") {
		t.Fatalf("error message = %q, want the failing stage named", got.ErrorMessage)
	}
	if h.summarizer.calls != 0 {
		t.Fatalf("summarizer calls = %d, want 0 after retrieve failure", h.summarizer.calls)
	}
	if len(h.feed.entries) != 0 {
		t.Fatalf("feed entries = %d, want none", len(h.feed.entries))
	}
}

func TestOrchestratorPayloadWithoutCaptionsFails(t *testing.T) {
	sub := pendingSubmission("sub-1")
	h := newTestHarness(t, sub)
	h.storePayload(t, sub, domain.SubmissionPayload{
		YoutubeVideo: &domain.VideoContent{Title: "T", Author: "A"},
	})

	o := h.orchestrator(t)
	err := o.Run(context.Background(), sub.ID)
	if !errors.Is(err, domain.ErrIncompleteSubmission) {
		t.Fatalf("err = %v, want ErrIncompleteSubmission", err)
	}
}

func TestOrchestratorEmptySummaryUsesPlaceholder(t *testing.T) {
	sub := pendingSubmission("sub-1")
	h := newTestHarness(t, sub)
	h.storePayload(t, sub, domain.SubmissionPayload{
		YoutubeVideo: &domain.VideoContent{Title: "T", Author: "A", Captions: "hello"},
	})
	h.summarizer.result = &SummaryResult{Summary: "   "}

	o := h.orchestrator(t)
	if err := o.Run(context.Background(), sub.ID); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	got, _ := h.submissions.GetByID(context.Background(), sub.ID)
	if got.SummaryText != "No summary generated" {
		t.Fatalf("summary text = %q, want the placeholder", got.SummaryText)
	}
}

func TestOrchestratorSkipsTerminalSubmission(t *testing.T) {
	sub := pendingSubmission("sub-1")
	sub.Status = domain.SubmissionStatusCancelled
	h := newTestHarness(t, sub)

	o := h.orchestrator(t)
	if err := o.Run(context.Background(), sub.ID); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if h.summarizer.calls != 0 || h.synthesizer.calls != 0 {
		t.Fatalf("terminal submission still executed stages")
	}
	got, _ := h.submissions.GetByID(context.Background(), sub.ID)
	if got.Status != domain.SubmissionStatusCancelled {
		t.Fatalf("status = %q, want cancelled untouched", got.Status)
	}
}

type racingCheckpoints struct {
	CheckpointStore
}

func (r *racingCheckpoints) Put(ctx context.Context, runID, stage string, result []byte) error {
	return ErrAlreadyCheckpointed
}

func TestOrchestratorYieldsOnCheckpointRace(t *testing.T) {
	sub := pendingSubmission("sub-1")
	h := newTestHarness(t, sub)
	h.storePayload(t, sub, domain.SubmissionPayload{
		YoutubeVideo: &domain.VideoContent{Title: "T", Author: "A", Captions: "hello"},
	})

	o := h.orchestrator(t, func(opts *OrchestratorOptions) {
		opts.Checkpoints = &racingCheckpoints{CheckpointStore: h.checkpoints}
	})
	if err := o.Run(context.Background(), sub.ID); err != nil {
		t.Fatalf("losing the checkpoint race must not error, got %v", err)
	}
	got, _ := h.submissions.GetByID(context.Background(), sub.ID)
	if got.Status == domain.SubmissionStatusFailed {
		t.Fatalf("losing the race marked the submission failed")
	}
}

func TestOrchestratorRetriesPersistStage(t *testing.T) {
	sub := pendingSubmission("sub-1")
	h := newTestHarness(t, sub)
	h.storePayload(t, sub, domain.SubmissionPayload{
		YoutubeVideo: &domain.VideoContent{Title: "T", Author: "A", Captions: "hello"},
	})
	h.feed.failFirst = 2

	retry := FixedRetry(3, time.Millisecond)
	o := h.orchestrator(t, func(opts *OrchestratorOptions) {
		opts.PersistRetry = &retry
	})
	if err := o.Run(context.Background(), sub.ID); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if h.feed.createCalls != 3 {
		t.Fatalf("feed create calls = %d, want 3 (two failures, one success)", h.feed.createCalls)
	}
	got, _ := h.submissions.GetByID(context.Background(), sub.ID)
	if got.Status != domain.SubmissionStatusCompleted {
		t.Fatalf("status = %q, want completed", got.Status)
	}
}

func TestOrchestratorPersistExhaustionFailsRun(t *testing.T) {
	sub := pendingSubmission("sub-1")
	h := newTestHarness(t, sub)
	h.storePayload(t, sub, domain.SubmissionPayload{
		YoutubeVideo: &domain.VideoContent{Title: "T", Author: "A", Captions: "hello"},
	})
	h.feed.failFirst = 100

	retry := FixedRetry(2, time.Millisecond)
	o := h.orchestrator(t, func(opts *OrchestratorOptions) {
		opts.PersistRetry = &retry
	})
	err := o.Run(context.Background(), sub.ID)
	if !errors.Is(err, domain.ErrPersistenceFailed) {
		t.Fatalf("err = %v, want ErrPersistenceFailed", err)
	}
	if h.feed.createCalls != 3 {
		t.Fatalf("feed create calls = %d, want 3 (initial + 2 retries)", h.feed.createCalls)
	}
	got, _ := h.submissions.GetByID(context.Background(), sub.ID)
	if got.Status != domain.SubmissionStatusFailed {
		t.Fatalf("status = %q, want failed", got.Status)
	}
}
