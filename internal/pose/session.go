package pose

// SuspendSource identifies one independent reason for suspending tracking.
type SuspendSource int

const (
	SuspendPause    SuspendSource = iota // modal pause menu
	SuspendPiloting                      // remotely piloted sub-vehicle
	SuspendToolZoom                      // zoomed aiming tool

	suspendSourceCount
)

func (s SuspendSource) String() string {
	switch s {
	case SuspendPause:
		return "pause"
	case SuspendPiloting:
		return "piloting"
	case SuspendToolZoom:
		return "tool-zoom"
	default:
		return "unknown"
	}
}

type suspendSlot struct {
	active bool
	saved  bool
}

// TrackingSession is the process-wide tracking switch plus the loss counter.
//
// Each suspension source owns one saved-flag slot. Suspending records the
// user's enabled flag in that source's slot and masks tracking off; resuming
// writes the slot back. Tracking stays off while any source is suspended, so
// resuming one source never re-enables tracking under another.
type TrackingSession struct {
	enabled bool
	slots   [suspendSourceCount]suspendSlot

	// FramesWithoutData counts consecutive frames with no valid sample.
	FramesWithoutData int
}

// NewTrackingSession returns a session with the given initial enabled flag.
func NewTrackingSession(enabled bool) *TrackingSession {
	return &TrackingSession{enabled: enabled}
}

// Enabled reports whether tracking should run this frame.
func (s *TrackingSession) Enabled() bool {
	return s.enabled && !s.AnySuspended()
}

// UserEnabled reports the toggle state ignoring suspensions.
func (s *TrackingSession) UserEnabled() bool {
	return s.enabled
}

// SetEnabled sets the user toggle.
func (s *TrackingSession) SetEnabled(v bool) {
	s.enabled = v
}

// Toggle flips the user toggle and returns the new value.
func (s *TrackingSession) Toggle() bool {
	s.enabled = !s.enabled
	return s.enabled
}

// Suspend masks tracking for src. Repeated suspends from the same source keep
// the first saved value.
func (s *TrackingSession) Suspend(src SuspendSource) {
	if !src.valid() || s.slots[src].active {
		return
	}
	s.slots[src] = suspendSlot{active: true, saved: s.enabled}
}

// Resume restores the flag saved by src's Suspend. Resuming a source that is
// not suspended does nothing.
func (s *TrackingSession) Resume(src SuspendSource) {
	if !src.valid() || !s.slots[src].active {
		return
	}
	s.enabled = s.slots[src].saved
	s.slots[src] = suspendSlot{}
}

// Suspended reports whether src is currently suspending tracking.
func (s *TrackingSession) Suspended(src SuspendSource) bool {
	return src.valid() && s.slots[src].active
}

// AnySuspended reports whether any source is suspending tracking.
func (s *TrackingSession) AnySuspended() bool {
	for _, slot := range s.slots {
		if slot.active {
			return true
		}
	}
	return false
}

// SuspendedSources lists the active suspension sources.
func (s *TrackingSession) SuspendedSources() []SuspendSource {
	var out []SuspendSource
	for i, slot := range s.slots {
		if slot.active {
			out = append(out, SuspendSource(i))
		}
	}
	return out
}

func (s SuspendSource) valid() bool {
	return s >= 0 && s < suspendSourceCount
}
