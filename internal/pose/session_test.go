package pose

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/headtrack/internal/geom"
)

func TestTrackingSession_Toggle(t *testing.T) {
	s := NewTrackingSession(true)
	if !s.Enabled() {
		t.Fatal("new session should be enabled")
	}
	if s.Toggle() {
		t.Error("Toggle() = true, want false")
	}
	if s.Enabled() {
		t.Error("Enabled() after toggle = true")
	}
	s.SetEnabled(true)
	if !s.Enabled() {
		t.Error("SetEnabled(true) did not enable")
	}
}

func TestTrackingSession_SuspendResumeRestoresFlag(t *testing.T) {
	tests := []struct {
		name    string
		initial bool
	}{
		{"enabled", true},
		{"disabled", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewTrackingSession(tt.initial)
			s.Suspend(SuspendPiloting)
			if s.Enabled() {
				t.Error("Enabled() while suspended = true")
			}
			if !s.Suspended(SuspendPiloting) {
				t.Error("Suspended(piloting) = false")
			}
			s.Resume(SuspendPiloting)
			if s.Enabled() != tt.initial {
				t.Errorf("Enabled() after resume = %v, want %v", s.Enabled(), tt.initial)
			}
		})
	}
}

func TestTrackingSession_IndependentSlots(t *testing.T) {
	s := NewTrackingSession(true)
	s.Suspend(SuspendPiloting)
	s.Suspend(SuspendToolZoom)

	want := []SuspendSource{SuspendPiloting, SuspendToolZoom}
	if diff := cmp.Diff(want, s.SuspendedSources()); diff != "" {
		t.Errorf("SuspendedSources() mismatch (-want +got):\n%s", diff)
	}

	// leaving the zoom must not re-enable tracking while piloting
	s.Resume(SuspendToolZoom)
	if s.Enabled() {
		t.Error("Enabled() with piloting still active = true")
	}
	s.Resume(SuspendPiloting)
	if !s.Enabled() {
		t.Error("Enabled() after both resumes = false")
	}
}

func TestTrackingSession_RepeatedSuspendKeepsFirstSave(t *testing.T) {
	s := NewTrackingSession(true)
	s.Suspend(SuspendPause)
	s.SetEnabled(false)
	s.Suspend(SuspendPause)
	s.Resume(SuspendPause)
	if !s.Enabled() {
		t.Error("second Suspend overwrote the saved flag")
	}
}

func TestTrackingSession_ResumeWithoutSuspend(t *testing.T) {
	s := NewTrackingSession(false)
	s.Resume(SuspendPause)
	if s.Enabled() {
		t.Error("Resume without Suspend changed the flag")
	}
	s.Suspend(SuspendSource(42))
	if s.AnySuspended() {
		t.Error("unknown source should be ignored")
	}
}

func TestSuspendSource_String(t *testing.T) {
	got := []string{SuspendPause.String(), SuspendPiloting.String(), SuspendToolZoom.String(), SuspendSource(9).String()}
	want := []string{"pause", "piloting", "tool-zoom", "unknown"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("String() mismatch (-want +got):\n%s", diff)
	}
}

func TestRotationCache(t *testing.T) {
	var c RotationCache
	if !c.NeedsUpdate(1, 0, 0, 0, 1, 0.01, false) {
		t.Fatal("empty cache should need update")
	}
	c.Update(1, 5, 0, 0, 1, geom.Identity())
	if c.NeedsUpdate(2, 5.009, 0, 0, 1, 0.01, false) {
		t.Error("sub-epsilon change should reuse cache")
	}
	if !c.NeedsUpdate(2, 5.011, 0, 0, 1, 0.01, false) {
		t.Error("change above epsilon should recompute")
	}
	if !c.NeedsUpdate(1, 5, 0, 0, 0.9, 0.01, false) {
		t.Error("influence change should recompute")
	}
	if !c.NeedsUpdate(1, 5, 0.02, 0, 1, 0.01, false) {
		t.Error("pitch change should recompute")
	}
	if !c.NeedsUpdate(1, 5, 0, -0.02, 1, 0.01, false) {
		t.Error("roll change should recompute")
	}
	if c.NeedsUpdate(1, 4.995, 0.005, -0.005, 0.995, 0.01, false) {
		t.Error("sub-epsilon change on every input should reuse cache")
	}
	if !c.NeedsUpdate(2, 5, 0, 0, 1, 0.01, true) {
		t.Error("new frame with eachFrame should recompute")
	}
	c.Invalidate()
	if !c.NeedsUpdate(1, 5, 0, 0, 1, 0.01, false) {
		t.Error("invalidated cache should need update")
	}
}
