package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"traffic-insights-go/internal/cache"
	"traffic-insights-go/internal/config"
	"traffic-insights-go/internal/extractor"
	"traffic-insights-go/internal/logger"
	"traffic-insights-go/internal/metadata"
	"traffic-insights-go/internal/normalizer"
	"traffic-insights-go/internal/processor"
	"traffic-insights-go/internal/report"
	"traffic-insights-go/internal/transcription"
	"traffic-insights-go/internal/types"
)

// supportedExts is the closed set of upload extensions. Anything else is the
// upstream collaborator's problem and is skipped here.
var supportedExts = map[string]bool{".wav": true, ".mp3": true, ".m4a": true}

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.WithField("service", "traffic-insights-go").Info("starting batch run")

	cfg := config.Load()

	store, err := cache.New(cfg.ProcessedDir)
	if err != nil {
		log.WithError(err).Fatal("failed to open cache store")
	}

	batch, err := loadBatch(cfg.InputDir)
	if err != nil {
		log.WithError(err).Fatal("failed to read input directory")
	}
	log.WithField("input_dir", cfg.InputDir).WithField("files", len(batch)).Info("batch loaded")

	sinks := report.MultiSink{&report.ConsoleSink{Log: log}}
	var excel *report.ExcelSink
	if cfg.ReportPath != "" {
		excel = report.NewExcelSink()
		sinks = append(sinks, excel)
	}

	proc := &processor.Processor{
		Cache:      store,
		Normalizer: normalizer.New(cfg.FFmpegBin),
		Metadata:   metadata.NewReader(cfg.FFprobeBin),
		Transcribe: transcription.NewClient(cfg),
		Extract:    extractor.NewClient(cfg),
		Sink:       sinks,
		Log:        log,
	}

	sum := proc.Run(context.Background(), batch)

	if excel != nil {
		if err := excel.Flush(cfg.ReportPath); err != nil {
			log.WithError(err).Error("failed to write report workbook")
		} else {
			log.WithField("report", cfg.ReportPath).Info("report workbook written")
		}
	}

	log.WithField("persisted", sum.Persisted).
		WithField("skipped", sum.Skipped).
		WithField("failed", sum.Failed).
		Info("batch finished")
}

// loadBatch reads every supported audio file under dir, in directory order.
func loadBatch(dir string) ([]types.InputAudio, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var batch []types.InputAudio
	for _, e := range entries {
		if e.IsDir() || !supportedExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		batch = append(batch, types.InputAudio{Name: e.Name(), Data: data})
	}
	return batch, nil
}
