// Package processor sequences the per-file pipeline: cache check, format
// normalization, metadata read, transcription, structured extraction,
// persistence. A failure anywhere is terminal for that file and invisible to
// the rest of the batch.
package processor

import (
	"context"
	"errors"
	"fmt"

	"traffic-insights-go/internal/cache"
	"traffic-insights-go/internal/extractor"
	"traffic-insights-go/internal/filedate"
	"traffic-insights-go/internal/logger"
	"traffic-insights-go/internal/normalizer"
	"traffic-insights-go/internal/report"
	"traffic-insights-go/internal/types"
)

// Normalizer converts input bytes into the canonical on-disk encoding.
type Normalizer interface {
	Normalize(ctx context.Context, in types.InputAudio) (*normalizer.Normalized, error)
}

// Transcriber converts normalized audio into plain text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Extractor turns a transcript into a StructuredRecord.
type Extractor interface {
	Extract(ctx context.Context, transcript, filename string) (types.StructuredRecord, error)
}

// CreateDateReader is the best-effort container tag probe.
type CreateDateReader interface {
	ReadCreateDate(ctx context.Context, path string) string
}

// Outcome is the terminal state of one file's run.
type Outcome string

const (
	OutcomePersisted Outcome = "persisted"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

type Processor struct {
	Cache      *cache.Store
	Normalizer Normalizer
	Metadata   CreateDateReader // optional
	Transcribe Transcriber
	Extract    Extractor
	Sink       report.Sink
	Log        *logger.Logger
}

// Summary counts terminal states across one batch.
type Summary struct {
	Persisted int
	Skipped   int
	Failed    int
}

// Run processes the batch sequentially, in input order. Per-file failures are
// reported and do not abort the rest.
func (p *Processor) Run(ctx context.Context, batch []types.InputAudio) Summary {
	var sum Summary
	for _, in := range batch {
		switch p.ProcessFile(ctx, in) {
		case OutcomePersisted:
			sum.Persisted++
		case OutcomeSkipped:
			sum.Skipped++
		default:
			sum.Failed++
		}
	}
	return sum
}

// ProcessFile runs the whole pipeline for one recording and emits exactly one
// terminal report for it.
func (p *Processor) ProcessFile(ctx context.Context, in types.InputAudio) Outcome {
	log := p.Log.WithFile(in.Name)

	// check-then-write for this filename is a single critical section, so a
	// duplicate name later in the batch hits the cache instead of paying for
	// the external calls twice
	unlock := p.Cache.Lock(in.Name)
	defer unlock()

	if p.Cache.Exists(in.Name) {
		rec, err := p.Cache.Load(in.Name)
		if err == nil {
			log.Info("cache hit, skipping")
			p.Sink.Cached(in.Name, rec)
			return OutcomeSkipped
		}
		log.WithError(err).Warn("cache entry unreadable, reprocessing")
	}

	p.Sink.Status(in.Name, "processing file")

	norm, err := p.Normalizer.Normalize(ctx, in)
	if err != nil {
		p.Sink.Failure(in.Name, err)
		return OutcomeFailed
	}
	defer norm.Cleanup()

	createDate := ""
	if p.Metadata != nil {
		createDate = p.Metadata.ReadCreateDate(ctx, norm.Path)
	}

	text, err := p.Transcribe.Transcribe(ctx, norm.Path)
	if err != nil {
		p.Sink.Failure(in.Name, err)
		return OutcomeFailed
	}
	p.Sink.Transcript(in.Name, text)

	rec, err := p.Extract.Extract(ctx, text, in.Name)
	if err != nil {
		if errors.Is(err, extractor.ErrParse) {
			// distinct wording: the transcript is worth a manual look
			p.Sink.Failure(in.Name, fmt.Errorf("error in extracting information, please check the transcript: %w", err))
		} else {
			p.Sink.Failure(in.Name, err)
		}
		return OutcomeFailed
	}

	rec.RecordingDate = filedate.ParseRecordingDate(in.Name)
	rec.MediaCreateDate = createDate

	// out-of-vocabulary model answers pass through, but are worth a warning
	if !rec.CarType.Valid() || !rec.DriverInfo.Valid() || !rec.InfractionSeverity.Valid() {
		log.WithField("car_type", string(rec.CarType)).
			WithField("driver_info", string(rec.DriverInfo)).
			WithField("infraction_severity", string(rec.InfractionSeverity)).
			Warn("model answered outside the enum vocabulary")
	}

	if err := p.Cache.Save(in.Name, rec); err != nil {
		p.Sink.Failure(in.Name, err)
		return OutcomeFailed
	}

	p.Sink.Record(in.Name, rec)
	return OutcomePersisted
}
