package presence

import (
	"fmt"
	"time"

	"tools.zach/dev/jellycord/internal/jellyfin"
)

// ///////////////////////////////////////////////
// Timestamp Calculator
// ///////////////////////////////////////////////

// Timestamps holds the absolute playback instants and the formatted
// time-remaining string for one resolution cycle.
type Timestamps struct {
	// Start is the Unix second playback effectively started at
	// (now minus the reported position). Zero when unknown.
	Start int64
	// End is the Unix second playback will finish at. Zero when the
	// runtime is unknown or playback is paused: a paused session is
	// treated as open-ended so the client doesn't count down.
	End int64
	// TimeLeft is the "H:MM:SS left" / "MM:SS left" string substituted
	// into the {time_left} token. Empty when paused or unknown.
	TimeLeft string
}

// ComputeTimestamps converts ticks into absolute instants anchored at now.
// When include is false or the position is unreported, no timestamps are
// produced and TimeLeft is empty.
func ComputeTimestamps(now time.Time, positionTicks *int64, runtimeTicks int64, isPaused, include bool) Timestamps {
	if !include || positionTicks == nil {
		return Timestamps{}
	}

	position := ticksToDuration(*positionTicks)
	ts := Timestamps{Start: now.Add(-position).Unix()}

	if runtimeTicks <= 0 {
		return ts
	}

	remaining := ticksToDuration(runtimeTicks) - position
	if remaining < 0 {
		remaining = 0
	}
	if !isPaused {
		ts.End = now.Add(remaining).Unix()
		ts.TimeLeft = formatTimeLeft(remaining)
	}
	return ts
}

// ticksToDuration converts Jellyfin 100ns ticks to a duration.
func ticksToDuration(ticks int64) time.Duration {
	return time.Duration(ticks/jellyfin.TicksPerSecond) * time.Second
}

// formatTimeLeft renders a remaining duration as "H:MM:SS left" when an
// hour or more remains, else "MM:SS left". Negative durations floor to
// "00:00 left".
func formatTimeLeft(d time.Duration) string {
	total := int64(d / time.Second)
	if total < 0 {
		total = 0
	}
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d left", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d left", m, s)
}
