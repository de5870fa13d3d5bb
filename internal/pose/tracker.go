// Package pose turns raw head-orientation samples into the camera's
// head-tracking rotation once per frame.
//
// The tracker owns centering, tracking-loss recovery, sensitivity scaling,
// influence damping and memoization of the composed rotation. It also
// publishes the base rotation (what the host camera would show with no head
// tracking) for the override arbiter's consumers.
//
// States:
//
//	Disabled   tracking off or no sensor link; head rotation is identity
//	Uncentered waiting for the first valid sample to capture as center
//	Centered   applying offsets from the captured center
package pose

import (
	"github.com/banshee-data/headtrack/internal/config"
	"github.com/banshee-data/headtrack/internal/geom"
	"github.com/banshee-data/headtrack/internal/host"
	"github.com/banshee-data/headtrack/internal/monitoring"
	"github.com/banshee-data/headtrack/internal/sensorlink"
)

// State is the tracker's centering state.
type State string

const (
	StateDisabled   State = "disabled"
	StateUncentered State = "uncentered"
	StateCentered   State = "centered"
)

// SampleSource supplies raw samples. *sensorlink.Link satisfies it.
type SampleSource interface {
	PollOnce(frame uint64)
	PeekLatest() sensorlink.RawSample
	Available() bool
}

// CenterReference is the sample captured as the zero pose.
type CenterReference struct {
	Yaw   float64
	Pitch float64
	Roll  float64
	IsSet bool
}

// Sensitivity scales each axis of the head offset.
type Sensitivity struct {
	Yaw   float64
	Pitch float64
	Roll  float64
}

// Config holds the tracker tuning.
type Config struct {
	Sensitivity Sensitivity
	Damping     Damping
	// LossThresholdFrames is how many consecutive frames without data a
	// centered tracker tolerates before dropping back to Uncentered.
	LossThresholdFrames int
	// Epsilon is the input change, in degrees (and influence units), below
	// which the cached rotation is reused.
	Epsilon float64
	// RecomputeEachFrame additionally recomputes whenever the frame index
	// advances.
	RecomputeEachFrame bool
}

// DefaultConfig returns the stock tracker tuning.
func DefaultConfig() Config {
	return Config{
		Sensitivity:         Sensitivity{Yaw: 1, Pitch: 1, Roll: 1},
		Damping:             DefaultDamping(),
		LossThresholdFrames: config.DefaultRecenterThresholdFrames,
		Epsilon:             config.DefaultCacheEpsilon,
	}
}

// ConfigFromTuning builds a Config from a loaded tuning file.
func ConfigFromTuning(c *config.TuningConfig) Config {
	return Config{
		Sensitivity: Sensitivity{
			Yaw:   c.GetYawSensitivity(),
			Pitch: c.GetPitchSensitivity(),
			Roll:  c.GetRollSensitivity(),
		},
		Damping: Damping{
			Threshold: c.GetDampingThreshold(),
			Range:     c.GetDampingRange(),
			Floor:     c.GetDampingFloor(),
		},
		LossThresholdFrames: c.GetRecenterThresholdFrames(),
		Epsilon:             c.GetCacheEpsilon(),
		RecomputeEachFrame:  c.GetRecomputeEachFrame(),
	}
}

// Tracker is the pose state machine. It is driven from the frame loop and is
// not safe for concurrent use.
type Tracker struct {
	cfg     Config
	session *TrackingSession
	src     SampleSource

	state  State
	center CenterReference
	cache  RotationCache

	head      geom.Quat
	base      geom.Quat
	localBase geom.Quat

	host      hostSpeed
	influence float64
	offsets   [3]float64

	applied      bool
	appliedFrame uint64
	recomputes   int
}

// NewTracker creates a tracker. src may be nil, which keeps the tracker
// Disabled.
func NewTracker(cfg Config, session *TrackingSession, src SampleSource) *Tracker {
	if cfg.Sensitivity.Yaw <= 0 {
		cfg.Sensitivity.Yaw = 1
	}
	if cfg.Sensitivity.Pitch <= 0 {
		cfg.Sensitivity.Pitch = 1
	}
	if cfg.Sensitivity.Roll <= 0 {
		cfg.Sensitivity.Roll = 1
	}
	if session == nil {
		session = NewTrackingSession(true)
	}
	return &Tracker{
		cfg:       cfg,
		session:   session,
		src:       src,
		state:     StateDisabled,
		head:      geom.Identity(),
		base:      geom.Identity(),
		localBase: geom.Identity(),
		influence: 1,
	}
}

// Update runs one frame of the state machine against cam.
func (t *Tracker) Update(frame uint64, cam host.Camera) {
	yaw, pitch, ok := cam.Degrees()
	if !ok {
		monitoring.Debugf("pose: frame %d: host camera degrees unavailable", frame)
		return
	}

	// Base rotation is tracked in every state.
	speed := t.host.observe(yaw, pitch)
	t.localBase = geom.Euler(-pitch, yaw, 0)
	t.base = t.localBase
	if parent, ok := cam.ParentRotation(); ok {
		t.base = geom.Mul(parent, t.localBase)
	}

	if !t.session.Enabled() || t.src == nil || !t.src.Available() {
		t.disable()
		return
	}
	if t.state == StateDisabled {
		t.state = StateUncentered
	}

	t.src.PollOnce(frame)
	s := t.src.PeekLatest()
	t.trackLoss(s)

	switch t.state {
	case StateUncentered:
		t.head = geom.Identity()
		if s.Valid {
			t.center = CenterReference{Yaw: s.Yaw, Pitch: s.Pitch, Roll: s.Roll, IsSet: true}
			t.state = StateCentered
			t.cache.Invalidate()
			monitoring.Debugf("pose: centered at yaw=%.2f pitch=%.2f roll=%.2f", s.Yaw, s.Pitch, s.Roll)
		}
	case StateCentered:
		if s.Valid {
			t.influence = Influence(speed, t.cfg.Damping)
			t.head = t.compose(frame, s)
		}
		// invalid: hold the last rotation rather than snapping to identity
	}

	cam.SetLocalRotation(geom.Mul(t.localBase, t.head))
	t.applied = true
	t.appliedFrame = frame
}

func (t *Tracker) disable() {
	if t.state != StateDisabled {
		monitoring.Debugf("pose: tracking disabled")
	}
	t.state = StateDisabled
	t.center = CenterReference{}
	t.head = geom.Identity()
	t.influence = 1
	t.cache.Invalidate()
}

func (t *Tracker) trackLoss(s sensorlink.RawSample) {
	if s.Valid {
		t.session.FramesWithoutData = 0
		return
	}
	t.session.FramesWithoutData++
	if t.session.FramesWithoutData > t.cfg.LossThresholdFrames && t.state == StateCentered {
		monitoring.Logf("head tracking lost for %d frames, recentering on next sample", t.session.FramesWithoutData)
		t.state = StateUncentered
		t.center = CenterReference{}
	}
}

func (t *Tracker) compose(frame uint64, s sensorlink.RawSample) geom.Quat {
	yaw := s.Yaw - t.center.Yaw
	pitch := s.Pitch - t.center.Pitch
	roll := s.Roll - t.center.Roll
	t.offsets = [3]float64{yaw, pitch, roll}
	infl := t.influence

	if !t.cache.NeedsUpdate(frame, yaw, pitch, roll, infl, t.cfg.Epsilon, t.cfg.RecomputeEachFrame) {
		return t.cache.Rotation
	}

	sens := t.cfg.Sensitivity
	q := geom.Normalize(geom.Mul(
		geom.AngleAxis(yaw*sens.Yaw*infl, geom.Up),
		geom.AngleAxis(pitch*-sens.Pitch*infl, geom.Right),
		geom.AngleAxis(roll*sens.Roll*infl, geom.Forward),
	))
	t.cache.Update(frame, yaw, pitch, roll, infl, q)
	t.recomputes++
	return q
}

// Recenter drops the current center; the next valid sample becomes the new
// zero pose. Tracking stays enabled.
func (t *Tracker) Recenter() {
	t.center = CenterReference{}
	t.cache.Invalidate()
	if t.state == StateCentered {
		t.state = StateUncentered
	}
}

// State returns the current state.
func (t *Tracker) State() State { return t.state }

// Center returns the captured center reference.
func (t *Tracker) Center() CenterReference { return t.center }

// Head returns the head-tracking-only rotation.
func (t *Tracker) Head() geom.Quat { return t.head }

// Base returns the world-space camera rotation without head tracking.
func (t *Tracker) Base() geom.Quat { return t.base }

// LocalBase returns the host camera's own local rotation for this frame.
func (t *Tracker) LocalBase() geom.Quat { return t.localBase }

// Influence returns the damping weight used for the last composition.
func (t *Tracker) Influence() float64 { return t.influence }

// HostSpeed returns the host camera's own angular change last frame.
func (t *Tracker) HostSpeed() float64 { return t.host.speed }

// Offsets returns the last yaw, pitch and roll offsets from center.
func (t *Tracker) Offsets() (yaw, pitch, roll float64) {
	return t.offsets[0], t.offsets[1], t.offsets[2]
}

// Recomputes counts how many times the head rotation was recomposed.
func (t *Tracker) Recomputes() int { return t.recomputes }

// AppliedFrame returns the last frame in which the tracker wrote the camera.
func (t *Tracker) AppliedFrame() (uint64, bool) { return t.appliedFrame, t.applied }

// HasHeadTracking reports whether the camera already carries a non-identity
// head rotation written during frame.
func (t *Tracker) HasHeadTracking(frame uint64) bool {
	return t.applied && t.appliedFrame == frame && !geom.IsIdentity(t.head)
}

// Session returns the tracking session the tracker reads.
func (t *Tracker) Session() *TrackingSession { return t.session }
