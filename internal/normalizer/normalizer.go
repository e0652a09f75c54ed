// Package normalizer converts uploaded audio into the canonical encoding the
// transcription engine expects: mp3/wav, 44100 Hz, 2 channels, 192 kbps,
// audio-only. Inputs already in a canonical container pass through untouched.
package normalizer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"traffic-insights-go/internal/run"
	"traffic-insights-go/internal/types"
)

// ErrConversion marks a transcoding failure: ffmpeg missing, exiting non-zero
// or producing no output. Fatal for the file, not for the batch.
var ErrConversion = errors.New("audio conversion failed")

const (
	sampleRate = "44100"
	channels   = "2"
	bitrate    = "192k"
)

// canonicalExts holds the extensions the transcription engine accepts as-is.
var canonicalExts = map[string]bool{"wav": true, "mp3": true}

type Normalizer struct {
	ffmpegBin string
	tempDir   string // "" = system default
	runner    run.Runner
}

func New(ffmpegBin string) *Normalizer {
	return &Normalizer{ffmpegBin: ffmpegBin, runner: run.ExecRunner{}}
}

// Normalized is the temporary filesystem resource produced for one run.
// Callers must Cleanup on every path.
type Normalized struct {
	Path    string
	workDir string
}

// Cleanup removes the temp workspace, including the transcoded output.
func (n *Normalized) Cleanup() {
	if n == nil || n.workDir == "" {
		return
	}
	_ = os.RemoveAll(n.workDir)
	n.workDir = ""
}

// Normalize materializes the input bytes on disk and transcodes them unless
// the declared extension is already canonical.
func (n *Normalizer) Normalize(ctx context.Context, in types.InputAudio) (*Normalized, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(in.Name), "."))

	work, err := os.MkdirTemp(n.tempDir, "traffic-insights-*")
	if err != nil {
		return nil, fmt.Errorf("%w: temp workspace: %v", ErrConversion, err)
	}

	inPath := filepath.Join(work, "input-"+uuid.New().String()+"."+ext)
	if err := os.WriteFile(inPath, in.Data, 0o600); err != nil {
		_ = os.RemoveAll(work)
		return nil, fmt.Errorf("%w: stage input: %v", ErrConversion, err)
	}

	if canonicalExts[ext] {
		// already canonical, no transcode
		return &Normalized{Path: inPath, workDir: work}, nil
	}

	outPath := strings.TrimSuffix(inPath, "."+ext) + ".mp3"
	args := []string{
		"-i", inPath,
		"-vn",
		"-ar", sampleRate,
		"-ac", channels,
		"-b:a", bitrate,
		outPath,
	}
	res, err := n.runner.Run(ctx, n.ffmpegBin, args...)
	if err != nil {
		_ = os.RemoveAll(work)
		return nil, fmt.Errorf("%w: ffmpeg exit %d: %s", ErrConversion, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	if _, err := os.Stat(outPath); err != nil {
		_ = os.RemoveAll(work)
		return nil, fmt.Errorf("%w: ffmpeg reported success but wrote no output", ErrConversion)
	}
	return &Normalized{Path: outPath, workDir: work}, nil
}
