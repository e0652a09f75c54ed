// Package filedate derives a recording timestamp from the upload filename
// convention year_month_day_hour_minute_sequence, e.g. 2024_03_15_09_30_0001.wav.
// The token-to-field mapping is a naming convention of the recording devices,
// kept in one pure function so it can be changed without touching the pipeline.
package filedate

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseRecordingDate returns "DD-MM-YYYY HH:MM" for conforming names and the
// empty string for anything else. It never fails.
func ParseRecordingDate(filename string) string {
	tokens := strings.Split(filename, "_")
	if len(tokens) != 6 {
		return ""
	}
	for _, tok := range tokens[:5] {
		if _, err := strconv.Atoi(tok); err != nil {
			return ""
		}
	}
	year, month, day, hour, minute := tokens[0], tokens[1], tokens[2], tokens[3], tokens[4]
	return fmt.Sprintf("%s-%s-%s %s:%s", day, month, year, hour, minute)
}
