package headtrack

import (
	"time"

	"github.com/banshee-data/headtrack/internal/geom"
	"github.com/banshee-data/headtrack/internal/pose"
	"github.com/banshee-data/headtrack/internal/sensorlink"
)

// Offsets are head offsets from the center reference, in degrees.
type Offsets struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// Status is a point-in-time snapshot published after every Tick.
type Status struct {
	SessionID   string            `json:"session_id"`
	Frame       uint64            `json:"frame"`
	Uptime      string            `json:"uptime"`
	State       pose.State        `json:"state"`
	Enabled     bool              `json:"enabled"`
	UserEnabled bool              `json:"user_enabled"`
	Suspended   []string          `json:"suspended,omitempty"`
	Centered    bool              `json:"centered"`
	Center      *Offsets          `json:"center,omitempty"`
	Offsets     Offsets           `json:"offsets"`
	HeadAngle   float64           `json:"head_angle"`
	Influence   float64           `json:"influence"`
	HostSpeed   float64           `json:"host_speed"`
	Recomputes  int               `json:"recomputes"`
	LostFrames  int               `json:"lost_frames"`
	Overrides   int               `json:"active_overrides"`
	Heals       int               `json:"override_heals"`
	Link        *sensorlink.Stats `json:"link,omitempty"`
}

func (s *Session) snapshot() Status {
	ts := s.tracker.Session()
	st := Status{
		SessionID:   s.id,
		Frame:       s.frame,
		Uptime:      s.clock.Since(s.started).Round(time.Millisecond).String(),
		State:       s.tracker.State(),
		Enabled:     ts.Enabled(),
		UserEnabled: ts.UserEnabled(),
		Influence:   s.tracker.Influence(),
		HostSpeed:   s.tracker.HostSpeed(),
		Recomputes:  s.tracker.Recomputes(),
		LostFrames:  ts.FramesWithoutData,
		Overrides:   s.arb.Active(),
		Heals:       s.arb.Heals(),
	}
	for _, src := range ts.SuspendedSources() {
		st.Suspended = append(st.Suspended, src.String())
	}
	if c := s.tracker.Center(); c.IsSet {
		st.Centered = true
		st.Center = &Offsets{Yaw: c.Yaw, Pitch: c.Pitch, Roll: c.Roll}
	}
	st.Offsets.Yaw, st.Offsets.Pitch, st.Offsets.Roll = s.tracker.Offsets()
	st.HeadAngle = geom.Angle(geom.Identity(), s.tracker.Head())
	if ls, ok := s.link.(statser); ok {
		stats := ls.Stats()
		st.Link = &stats
	}
	return st
}

func (s *Session) publish() {
	st := s.snapshot()
	s.statusMu.Lock()
	s.status = st
	s.statusMu.Unlock()
}

// Status returns the snapshot from the most recent Tick. Safe for concurrent
// use.
func (s *Session) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}
