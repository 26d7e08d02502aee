// Package track provides the Info entity attached to playlist entries.
package track

import (
	"strings"
	"time"

	"github.com/samber/lo"
)

// Origin represents where a track's samples come from.
type Origin string

const (
	OriginFile    Origin = "FILE"
	OriginTone    Origin = "TONE"
	OriginSilence Origin = "SILENCE"
)

// Info describes a track for display and logging.
// It never carries samples.
type Info struct {
	ID          string        // Stable id assigned when the entry is built
	Title       string        // Track title
	Artists     []string      // Artist names
	Album       string        // Album name
	Source      string        // File path or generator description
	Origin      Origin        // Kind of source
	Duration    time.Duration // Known duration, zero if unknown
	DisplayName string        // Label configured for the entry, optional
}

// DisplayTitle returns a human readable label.
func (i *Info) DisplayTitle() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	if i.Title == "" {
		return i.Source
	}
	if len(i.Artists) == 0 {
		return i.Title
	}
	return strings.Join(i.Artists, ", ") + " - " + i.Title
}

// TotalDuration returns the sum of known durations.
func TotalDuration(infos []Info) time.Duration {
	return lo.SumBy(infos, func(i Info) time.Duration {
		return i.Duration
	})
}
