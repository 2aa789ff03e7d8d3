// Package clock provides the engine's single source of time: monotonic
// durations for scheduling and wall-clock millisecond timestamps for
// records written to the Cache. Grounded on the teacher's habit of
// construction-injecting small leaf components (e.g. market.Book's
// time.Time fields) rather than reaching for time.Now() ambiently — the
// Go realization of spec §9's "global process singletons ... →
// construction-injected handles" note.
package clock

import "time"

// Clock is the construction-injected time source for the engine. The
// default implementation wraps the real wall clock; tests may substitute
// a fake that advances deterministically.
type Clock interface {
	// NowMillis returns the current wall-clock time in unix milliseconds.
	NowMillis() int64
	// Now returns the current wall-clock time.
	Now() time.Time
	// Sleep suspends for d and, like time.Sleep, cannot be interrupted —
	// callers that need cancellation should prefer a select on After and
	// ctx.Done() instead; Sleep is provided for the rare uncancelable
	// suspensions (e.g. final cleanup delays).
	Sleep(d time.Duration)
	// After returns a channel that fires once after d, equivalent to
	// time.After but routed through the Clock so fakes can control it.
	After(d time.Duration) <-chan time.Time
}

// Live is the production Clock backed by the real OS clock.
type Live struct{}

// New returns the live, real-time Clock implementation.
func New() Clock { return Live{} }

func (Live) NowMillis() int64                   { return time.Now().UnixMilli() }
func (Live) Now() time.Time                     { return time.Now() }
func (Live) Sleep(d time.Duration)              { time.Sleep(d) }
func (Live) After(d time.Duration) <-chan time.Time { return time.After(d) }
