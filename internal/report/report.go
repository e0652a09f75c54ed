// Package report is where pipeline results become visible to a human. Every
// file in a batch gets exactly one terminal call: Record, Cached or Failure.
package report

import (
	"traffic-insights-go/internal/logger"
	"traffic-insights-go/internal/types"
)

type Sink interface {
	// Status emits a progress line for a file.
	Status(name, msg string)
	// Transcript emits the raw transcript once available.
	Transcript(name, text string)
	// Record is the terminal call for a freshly processed file.
	Record(name string, rec types.StructuredRecord)
	// Cached is the terminal call for a cache hit.
	Cached(name string, rec types.StructuredRecord)
	// Failure is the terminal call for a failed file.
	Failure(name string, err error)
}

// ConsoleSink reports through the structured logger.
type ConsoleSink struct {
	Log *logger.Logger
}

func (c *ConsoleSink) Status(name, msg string) {
	c.Log.WithField("filename", name).Info(msg)
}

func (c *ConsoleSink) Transcript(name, text string) {
	c.Log.WithField("filename", name).WithField("transcript", text).Info("transcription")
}

func (c *ConsoleSink) Record(name string, rec types.StructuredRecord) {
	c.Log.WithField("filename", name).
		WithField("car_type", string(rec.CarType)).
		WithField("infraction_severity", string(rec.InfractionSeverity)).
		WithField("recording_date", rec.RecordingDate).
		Info("processed and saved")
}

func (c *ConsoleSink) Cached(name string, rec types.StructuredRecord) {
	c.Log.WithField("filename", name).Info("already processed")
}

func (c *ConsoleSink) Failure(name string, err error) {
	c.Log.WithField("filename", name).WithError(err).Error("processing failed")
}

// MultiSink fans every call out to each sink in order.
type MultiSink []Sink

func (m MultiSink) Status(name, msg string) {
	for _, s := range m {
		s.Status(name, msg)
	}
}

func (m MultiSink) Transcript(name, text string) {
	for _, s := range m {
		s.Transcript(name, text)
	}
}

func (m MultiSink) Record(name string, rec types.StructuredRecord) {
	for _, s := range m {
		s.Record(name, rec)
	}
}

func (m MultiSink) Cached(name string, rec types.StructuredRecord) {
	for _, s := range m {
		s.Cached(name, rec)
	}
}

func (m MultiSink) Failure(name string, err error) {
	for _, s := range m {
		s.Failure(name, err)
	}
}
