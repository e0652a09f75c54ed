package report

import (
	"fmt"
	"sync"

	"github.com/xuri/excelize/v2"

	"traffic-insights-go/internal/types"
)

// ExcelSink accumulates batch results and writes them to a workbook on Flush:
// a Records sheet with one row per terminal file and a Summary sheet with the
// aggregate counts.
type ExcelSink struct {
	mu       sync.Mutex
	records  []types.StructuredRecord
	failures map[string]string
}

func NewExcelSink() *ExcelSink {
	return &ExcelSink{failures: make(map[string]string)}
}

func (e *ExcelSink) Status(name, msg string)      {}
func (e *ExcelSink) Transcript(name, text string) {}

func (e *ExcelSink) Record(name string, rec types.StructuredRecord) {
	e.mu.Lock()
	e.records = append(e.records, rec)
	e.mu.Unlock()
}

func (e *ExcelSink) Cached(name string, rec types.StructuredRecord) {
	e.mu.Lock()
	e.records = append(e.records, rec)
	e.mu.Unlock()
}

func (e *ExcelSink) Failure(name string, err error) {
	e.mu.Lock()
	e.failures[name] = err.Error()
	e.mu.Unlock()
}

var recordHeader = []any{
	"filename", "recording_date", "car_type", "car_model", "car_color",
	"license_plate", "location", "driver_info", "infraction_severity",
	"infraction_description", "transcription",
}

// Flush writes the workbook to path.
func (e *ExcelSink) Flush(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Records"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("report workbook: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &recordHeader); err != nil {
		return fmt.Errorf("report workbook: %w", err)
	}
	for i, rec := range e.records {
		row := []any{
			rec.Filename, rec.RecordingDate, string(rec.CarType), rec.CarModel,
			rec.CarColor, rec.LicensePlate, rec.Location, string(rec.DriverInfo),
			string(rec.InfractionSeverity), rec.InfractionDescription, rec.Transcription,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("report workbook: %w", err)
		}
	}

	if err := e.writeSummary(f); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("report workbook: %w", err)
	}
	return nil
}

func (e *ExcelSink) writeSummary(f *excelize.File) error {
	ins := Summarize(e.records)
	sheet := "Summary"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("report workbook: %w", err)
	}
	rows := [][]any{
		{"total_records", ins.Total},
		{"failed_files", len(e.failures)},
	}
	for sev, n := range ins.BySeverity {
		rows = append(rows, []any{"severity_" + sev, n})
	}
	for ct, n := range ins.ByCarType {
		rows = append(rows, []any{"car_type_" + ct, n})
	}
	for name, msg := range e.failures {
		rows = append(rows, []any{"error: " + name, msg})
	}
	for i := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("report workbook: %w", err)
		}
	}
	return nil
}
