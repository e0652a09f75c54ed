package report

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"traffic-insights-go/internal/types"
)

func sampleRecord(name string, sev types.Severity) types.StructuredRecord {
	return types.StructuredRecord{
		CarType:            types.CarTypeSedan,
		InfractionSeverity: sev,
		Filename:           name,
		RecordingDate:      "15-03-2024 09:30",
		Transcription:      "sedan avançou o sinal",
	}
}

func TestSummarize(t *testing.T) {
	ins := Summarize([]types.StructuredRecord{
		sampleRecord("a.wav", types.SeverityLow),
		sampleRecord("b.wav", types.SeverityLow),
		sampleRecord("c.wav", types.SeverityHigh),
		{Filename: "d.wav"}, // blanks not counted
	})
	if ins.Total != 4 {
		t.Fatalf("Total = %d", ins.Total)
	}
	if ins.BySeverity["low"] != 2 || ins.BySeverity["high"] != 1 {
		t.Fatalf("BySeverity = %v", ins.BySeverity)
	}
	if ins.ByCarType["Sedan"] != 3 {
		t.Fatalf("ByCarType = %v", ins.ByCarType)
	}
}

func TestExcelSinkFlush(t *testing.T) {
	sink := NewExcelSink()
	sink.Record("a.wav", sampleRecord("a.wav", types.SeverityLow))
	sink.Cached("b.wav", sampleRecord("b.wav", types.SeverityHigh))
	sink.Failure("c.wav", errors.New("audio conversion failed"))

	path := filepath.Join(t.TempDir(), "report.xlsx")
	if err := sink.Flush(path); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Records")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 { // header + two terminal records
		t.Fatalf("Records rows = %d, want 3", len(rows))
	}
	if rows[0][0] != "filename" {
		t.Fatalf("header = %v", rows[0])
	}
	if rows[1][0] != "a.wav" || rows[2][0] != "b.wav" {
		t.Fatalf("record rows = %v / %v", rows[1], rows[2])
	}

	sum, err := f.GetRows("Summary")
	if err != nil {
		t.Fatalf("GetRows(Summary) error = %v", err)
	}
	found := map[string]string{}
	for _, row := range sum {
		if len(row) >= 2 {
			found[row[0]] = row[1]
		}
	}
	if found["total_records"] != "2" {
		t.Fatalf("total_records = %q", found["total_records"])
	}
	if found["failed_files"] != "1" {
		t.Fatalf("failed_files = %q", found["failed_files"])
	}
	if found["error: c.wav"] != "audio conversion failed" {
		t.Fatalf("failure row = %q", found["error: c.wav"])
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	a, b := NewExcelSink(), NewExcelSink()
	m := MultiSink{a, b}
	m.Record("x.wav", sampleRecord("x.wav", types.SeverityMed))
	m.Failure("y.wav", errors.New("boom"))

	if len(a.records) != 1 || len(b.records) != 1 {
		t.Fatalf("records not fanned out: %d / %d", len(a.records), len(b.records))
	}
	if len(a.failures) != 1 || len(b.failures) != 1 {
		t.Fatalf("failures not fanned out")
	}
}
