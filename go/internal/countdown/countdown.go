package countdown

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// Elapsed formats the whole seconds between start and now as HH:MM:SS.
// Hours are not wrapped at 24. A now before start yields "00:00:00".
func Elapsed(start, now time.Time) string {
	secs := int64(now.Sub(start) / time.Second)
	if secs < 0 {
		secs = 0
	}

	hours := secs / 3600
	minutes := (secs % 3600) / 60
	seconds := secs % 60

	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// Calculator computes countdowns against an injected clock.
type Calculator struct {
	clock clockwork.Clock
}

// NewCalculator creates a calculator. A nil clock means wall-clock time.
func NewCalculator(clock clockwork.Clock) *Calculator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Calculator{clock: clock}
}

// Since returns the elapsed time from start to the clock's current time.
func (c *Calculator) Since(start time.Time) string {
	return Elapsed(start, c.clock.Now())
}
