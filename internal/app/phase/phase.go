// Package phase derives the entry window of a scheduled consultation from wall-clock time.
package phase

import (
	"fmt"
	"time"

	"github.com/dkeye/Consult/internal/domain"
)

const (
	// EntryEarlyWindow is how long before the scheduled start the room opens.
	EntryEarlyWindow = 5 * time.Minute
	// ExitGraceWindow is how long after the scheduled end the room stays open.
	ExitGraceWindow = 10 * time.Minute
)

// Compute returns the phase at now and, in WAIT, the time left until the room opens.
// Both window boundaries belong to OPEN.
func Compute(now, start, end time.Time) (domain.Phase, time.Duration) {
	waitEnd := start.Add(-EntryEarlyWindow)
	sessionEnd := end.Add(ExitGraceWindow)
	switch {
	case now.Before(waitEnd):
		return domain.PhaseWait, waitEnd.Sub(now)
	case !now.After(sessionEnd):
		return domain.PhaseOpen, 0
	default:
		return domain.PhaseClosed, 0
	}
}

// Countdown renders a remaining duration as mm:ss, rounding partial seconds up.
func Countdown(d time.Duration) string {
	if d <= 0 {
		return "00:00"
	}
	secs := Seconds(d)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// Seconds is d in whole seconds, partial seconds rounded up. Non-positive d is 0.
func Seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// Clock is the wall-clock source; tests substitute a fixed one.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
