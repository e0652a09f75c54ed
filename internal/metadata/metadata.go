// Package metadata does a best-effort read of the creation timestamp embedded
// in audio container tags. It never fails: any probe problem just means no
// timestamp.
package metadata

import (
	"context"
	"encoding/json"
	"strings"

	"traffic-insights-go/internal/run"
)

type Reader struct {
	ffprobeBin string
	runner     run.Runner
}

func NewReader(ffprobeBin string) *Reader {
	return &Reader{ffprobeBin: ffprobeBin, runner: run.ExecRunner{}}
}

// probeOutput is the subset of ffprobe -show_format JSON we care about.
type probeOutput struct {
	Format struct {
		Tags map[string]string `json:"tags"`
	} `json:"format"`
}

// tag keys seen across containers for the recording creation timestamp
var createDateKeys = []string{"creation_time", "create_date", "date"}

// ReadCreateDate returns the container creation timestamp, or "" when the
// probe fails, the container has no tags, or no known key is present.
func (r *Reader) ReadCreateDate(ctx context.Context, path string) string {
	res, err := r.runner.Run(ctx, r.ffprobeBin, "-v", "error", "-show_format", "-of", "json", "--", path)
	if err != nil {
		return ""
	}
	var out probeOutput
	if err := json.Unmarshal([]byte(res.Stdout), &out); err != nil {
		return ""
	}
	for _, key := range createDateKeys {
		for k, v := range out.Format.Tags {
			if strings.EqualFold(k, key) && v != "" {
				return v
			}
		}
	}
	return ""
}
