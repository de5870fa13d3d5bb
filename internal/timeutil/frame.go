package timeutil

import "time"

// FrameClock caches the wall-clock time per frame index so that hot paths that
// ask for "now" several times in one frame only query the underlying clock once.
// The cached value still tracks wall-clock time because it is refreshed as soon
// as the frame index changes.
//
// FrameClock is not safe for concurrent use; it belongs to the frame loop.
type FrameClock struct {
	clock Clock
	frame uint64
	now   time.Time
	valid bool
}

// NewFrameClock wraps clock. A nil clock falls back to RealClock.
func NewFrameClock(clock Clock) *FrameClock {
	if clock == nil {
		clock = RealClock{}
	}
	return &FrameClock{clock: clock}
}

// Now returns the cached time for frame, reading the clock on the first call
// for each new frame.
func (f *FrameClock) Now(frame uint64) time.Time {
	if !f.valid || f.frame != frame {
		f.now = f.clock.Now()
		f.frame = frame
		f.valid = true
	}
	return f.now
}

// Last returns the most recently cached time, or the zero time before the
// first frame.
func (f *FrameClock) Last() time.Time {
	return f.now
}

// Clock returns the wrapped clock.
func (f *FrameClock) Clock() Clock {
	return f.clock
}
