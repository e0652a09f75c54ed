package processor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"traffic-insights-go/internal/cache"
	"traffic-insights-go/internal/extractor"
	"traffic-insights-go/internal/logger"
	"traffic-insights-go/internal/normalizer"
	"traffic-insights-go/internal/types"
)

type fakeNormalizer struct {
	calls   int
	failFor map[string]bool
}

func (f *fakeNormalizer) Normalize(ctx context.Context, in types.InputAudio) (*normalizer.Normalized, error) {
	f.calls++
	if f.failFor[in.Name] {
		return nil, fmt.Errorf("%w: ffmpeg exit 1", normalizer.ErrConversion)
	}
	return &normalizer.Normalized{Path: filepath.Join("tmp", in.Name+".mp3")}, nil
}

type fakeTranscriber struct {
	calls int
	text  string
	err   error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeExtractor struct {
	calls int
	err   error
}

func (f *fakeExtractor) Extract(ctx context.Context, transcript, filename string) (types.StructuredRecord, error) {
	f.calls++
	if f.err != nil {
		return types.StructuredRecord{}, f.err
	}
	return types.StructuredRecord{
		CarType:            types.CarTypeSedan,
		InfractionSeverity: types.SeverityLow,
		Transcription:      transcript,
		Filename:           filename,
	}, nil
}

type fakeMetadata struct{ date string }

func (f *fakeMetadata) ReadCreateDate(ctx context.Context, path string) string { return f.date }

// recordingSink tracks terminal reports per filename.
type recordingSink struct {
	statuses  []string
	terminals map[string][]string
	records   map[string]types.StructuredRecord
	failures  map[string]error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		terminals: map[string][]string{},
		records:   map[string]types.StructuredRecord{},
		failures:  map[string]error{},
	}
}

func (r *recordingSink) Status(name, msg string)      { r.statuses = append(r.statuses, name+": "+msg) }
func (r *recordingSink) Transcript(name, text string) {}
func (r *recordingSink) Record(name string, rec types.StructuredRecord) {
	r.terminals[name] = append(r.terminals[name], "record")
	r.records[name] = rec
}
func (r *recordingSink) Cached(name string, rec types.StructuredRecord) {
	r.terminals[name] = append(r.terminals[name], "cached")
	r.records[name] = rec
}
func (r *recordingSink) Failure(name string, err error) {
	r.terminals[name] = append(r.terminals[name], "failure")
	r.failures[name] = err
}

type env struct {
	proc  *Processor
	store *cache.Store
	norm  *fakeNormalizer
	tr    *fakeTranscriber
	ex    *fakeExtractor
	sink  *recordingSink
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store, err := cache.New(filepath.Join(t.TempDir(), "processed"))
	if err != nil {
		t.Fatalf("cache.New() error = %v", err)
	}
	e := &env{
		store: store,
		norm:  &fakeNormalizer{failFor: map[string]bool{}},
		tr:    &fakeTranscriber{text: "sedan prata avançou o sinal"},
		ex:    &fakeExtractor{},
		sink:  newRecordingSink(),
	}
	e.proc = &Processor{
		Cache:      store,
		Normalizer: e.norm,
		Metadata:   &fakeMetadata{date: "2024-03-15T09:30:00Z"},
		Transcribe: e.tr,
		Extract:    e.ex,
		Sink:       e.sink,
		Log:        logger.New(),
	}
	return e
}

func TestProcessFilePersists(t *testing.T) {
	e := newEnv(t)
	const name = "2024_03_15_09_30_0001.wav"

	out := e.proc.ProcessFile(context.Background(), types.InputAudio{Name: name, Data: []byte("x")})
	if out != OutcomePersisted {
		t.Fatalf("outcome = %q, want persisted", out)
	}

	rec, ok := e.sink.records[name]
	if !ok {
		t.Fatal("no record reported")
	}
	if rec.RecordingDate != "15-03-2024 09:30" {
		t.Fatalf("recording_date = %q", rec.RecordingDate)
	}
	if rec.MediaCreateDate != "2024-03-15T09:30:00Z" {
		t.Fatalf("media_create_date = %q", rec.MediaCreateDate)
	}
	if rec.Transcription != "sedan prata avançou o sinal" {
		t.Fatalf("transcription = %q", rec.Transcription)
	}
	if rec.Filename != name {
		t.Fatalf("filename = %q", rec.Filename)
	}

	if !e.store.Exists(name) {
		t.Fatal("record not persisted")
	}
	saved, err := e.store.Load(name)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if saved != rec {
		t.Fatalf("persisted record differs from reported one")
	}
}

// TestProcessFileCacheHitSkipsEngines is the idempotence property: a cached
// filename must never reach the transcription or extraction engines again.
func TestProcessFileCacheHitSkipsEngines(t *testing.T) {
	e := newEnv(t)
	const name = "2024_03_15_09_30_0001.wav"

	cached := types.StructuredRecord{
		CarType:       types.CarTypeBus,
		Filename:      name,
		Transcription: "previously computed",
	}
	if err := e.store.Save(name, cached); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// different bytes, same logical name
	out := e.proc.ProcessFile(context.Background(), types.InputAudio{Name: name, Data: []byte("new content")})
	if out != OutcomeSkipped {
		t.Fatalf("outcome = %q, want skipped", out)
	}
	if e.norm.calls != 0 || e.tr.calls != 0 || e.ex.calls != 0 {
		t.Fatalf("engines invoked on cache hit: norm=%d tr=%d ex=%d", e.norm.calls, e.tr.calls, e.ex.calls)
	}
	if got := e.sink.records[name]; got != cached {
		t.Fatalf("reported record = %+v, want cached one unchanged", got)
	}
}

// TestRunBatchIsolation: the middle file fails at normalization, the other
// two must still reach a terminal state and each file gets exactly one
// terminal report.
func TestRunBatchIsolation(t *testing.T) {
	e := newEnv(t)
	e.norm.failFor["2024_03_15_09_31_0002.wav"] = true

	batch := []types.InputAudio{
		{Name: "2024_03_15_09_30_0001.wav", Data: []byte("a")},
		{Name: "2024_03_15_09_31_0002.wav", Data: []byte("b")},
		{Name: "2024_03_15_09_32_0003.wav", Data: []byte("c")},
	}
	sum := e.proc.Run(context.Background(), batch)

	if sum.Persisted != 2 || sum.Failed != 1 || sum.Skipped != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	for _, in := range batch {
		if n := len(e.sink.terminals[in.Name]); n != 1 {
			t.Fatalf("%s got %d terminal reports, want 1", in.Name, n)
		}
	}
	if err := e.sink.failures["2024_03_15_09_31_0002.wav"]; !errors.Is(err, normalizer.ErrConversion) {
		t.Fatalf("failure error = %v, want ErrConversion", err)
	}
	if e.store.Exists("2024_03_15_09_31_0002.wav") {
		t.Fatal("failed file must not be persisted")
	}
}

// TestProcessFileParseErrorNotPersisted: a ParseError is terminal, leaves no
// cache entry and tells the operator to look at the transcript.
func TestProcessFileParseErrorNotPersisted(t *testing.T) {
	e := newEnv(t)
	e.ex.err = fmt.Errorf("llm extract failed: %w", extractor.ErrParse)
	const name = "clip.mp3"

	out := e.proc.ProcessFile(context.Background(), types.InputAudio{Name: name, Data: []byte("x")})
	if out != OutcomeFailed {
		t.Fatalf("outcome = %q, want failed", out)
	}
	if e.store.Exists(name) {
		t.Fatal("cache entry written despite parse error")
	}
	err := e.sink.failures[name]
	if !errors.Is(err, extractor.ErrParse) {
		t.Fatalf("failure error = %v, want ErrParse", err)
	}
	if !strings.Contains(err.Error(), "transcript") {
		t.Fatalf("parse failure report should point at the transcript, got %q", err)
	}
}

// TestRunDuplicateFilenames: the same logical name twice in one batch must
// pay for the external calls only once.
func TestRunDuplicateFilenames(t *testing.T) {
	e := newEnv(t)
	batch := []types.InputAudio{
		{Name: "2024_03_15_09_30_0001.wav", Data: []byte("a")},
		{Name: "2024_03_15_09_30_0001.wav", Data: []byte("a-again")},
	}
	sum := e.proc.Run(context.Background(), batch)

	if sum.Persisted != 1 || sum.Skipped != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if e.tr.calls != 1 || e.ex.calls != 1 {
		t.Fatalf("external calls: tr=%d ex=%d, want 1 each", e.tr.calls, e.ex.calls)
	}
}

func TestProcessFileTranscriptionFailure(t *testing.T) {
	e := newEnv(t)
	e.tr.err = errors.New("transcription failed: engine down")
	const name = "clip.wav"

	if out := e.proc.ProcessFile(context.Background(), types.InputAudio{Name: name}); out != OutcomeFailed {
		t.Fatalf("outcome = %q, want failed", out)
	}
	if e.ex.calls != 0 {
		t.Fatal("extractor invoked after transcription failure")
	}
	if e.store.Exists(name) {
		t.Fatal("failed file persisted")
	}
}

func TestProcessFileWithoutMetadataReader(t *testing.T) {
	e := newEnv(t)
	e.proc.Metadata = nil
	const name = "clip.wav"

	if out := e.proc.ProcessFile(context.Background(), types.InputAudio{Name: name}); out != OutcomePersisted {
		t.Fatalf("outcome = %q, want persisted", out)
	}
	if rec := e.sink.records[name]; rec.MediaCreateDate != "" {
		t.Fatalf("media_create_date = %q, want empty", rec.MediaCreateDate)
	}
}
