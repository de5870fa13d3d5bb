// Package headtrack wires the sensor link, pose tracker and override arbiter
// into one session owned by the host's frame loop.
//
// Everything except Submit, Status and the admin routes runs on the frame
// loop. Admin requests are queued as commands and applied at the start of the
// next Tick.
package headtrack

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/headtrack/internal/arbiter"
	"github.com/banshee-data/headtrack/internal/config"
	"github.com/banshee-data/headtrack/internal/geom"
	"github.com/banshee-data/headtrack/internal/host"
	"github.com/banshee-data/headtrack/internal/monitoring"
	"github.com/banshee-data/headtrack/internal/pose"
	"github.com/banshee-data/headtrack/internal/sensorlink"
	"github.com/banshee-data/headtrack/internal/timeutil"
)

// ErrMissingHostHook is returned by New when the host adapter cannot supply a
// required capability.
var ErrMissingHostHook = errors.New("missing host hook")

// Options configures a Session.
type Options struct {
	// Config is the tuning; nil uses the built-in defaults.
	Config *config.TuningConfig
	// Camera is the host's player camera. Required.
	Camera host.Camera
	// Link supplies samples. When nil a UDP sensor link is created from
	// Config. A link that also has Initialize() error is initialized by New.
	Link pose.SampleSource
	// Clock drives the default link and the session uptime; nil means
	// wall-clock time.
	Clock timeutil.Clock
}

// Command is a request applied on the frame loop.
type Command int

const (
	CommandRecenter Command = iota
	CommandToggle
)

func (c Command) String() string {
	switch c {
	case CommandRecenter:
		return "recenter"
	case CommandToggle:
		return "toggle"
	default:
		return fmt.Sprintf("command(%d)", int(c))
	}
}

// Session is one head-tracking session.
type Session struct {
	id      string
	cam     host.Camera
	link    pose.SampleSource
	tracker *pose.Tracker
	arb     *arbiter.Arbiter
	frame   uint64
	clock   timeutil.Clock
	started time.Time

	cmdMu    sync.Mutex
	commands []Command

	statusMu sync.RWMutex
	status   Status
}

type initializer interface {
	Initialize() error
}

type shutdowner interface {
	Shutdown()
}

type statser interface {
	Stats() sensorlink.Stats
}

// New validates the host adapter, binds the sensor link and returns a ready
// session. Errors here are meant to disable head tracking outright.
func New(opts Options) (*Session, error) {
	if opts.Camera == nil {
		return nil, fmt.Errorf("%w: camera", ErrMissingHostHook)
	}
	if r, ok := opts.Camera.(host.HookReporter); ok {
		if missing := r.MissingHooks(); len(missing) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingHostHook, strings.Join(missing, ", "))
		}
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultTuningConfig()
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	link := opts.Link
	if link == nil {
		link = sensorlink.NewLink(sensorlink.LinkConfig{
			Address:        fmt.Sprintf(":%d", cfg.GetPort()),
			ReceiveTimeout: cfg.GetReceiveTimeout(),
			StaleTimeout:   cfg.GetStaleTimeout(),
			MaxDrain:       cfg.GetMaxDrainPackets(),
			Clock:          clock,
		})
	}
	if in, ok := link.(initializer); ok {
		if err := in.Initialize(); err != nil {
			return nil, fmt.Errorf("failed to start sensor link: %w", err)
		}
	}

	s := &Session{
		id:      uuid.NewString(),
		cam:     opts.Camera,
		link:    link,
		tracker: pose.NewTracker(pose.ConfigFromTuning(cfg), pose.NewTrackingSession(cfg.GetStartEnabled()), link),
		arb:     arbiter.New(),
		clock:   clock,
		started: clock.Now(),
	}
	s.publish()
	monitoring.Logf("head tracking session %s started (camera %s)", s.id, opts.Camera.ID())
	return s, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Tracker exposes the pose tracker for read-only inspection.
func (s *Session) Tracker() *pose.Tracker { return s.tracker }

// Arbiter exposes the override arbiter for consumers that manage their own
// transforms.
func (s *Session) Arbiter() *arbiter.Arbiter { return s.arb }

// Tick runs one frame: pending commands, then the tracker.
func (s *Session) Tick(frame uint64) {
	s.frame = frame
	for _, c := range s.drainCommands() {
		s.apply(c)
	}
	s.tracker.Update(frame, s.cam)
	s.publish()
}

// Submit queues c for the next Tick. Safe for concurrent use.
func (s *Session) Submit(c Command) {
	s.cmdMu.Lock()
	s.commands = append(s.commands, c)
	s.cmdMu.Unlock()
}

func (s *Session) drainCommands() []Command {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()
	cmds := s.commands
	s.commands = nil
	return cmds
}

func (s *Session) apply(c Command) {
	switch c {
	case CommandRecenter:
		s.Recenter()
	case CommandToggle:
		s.ToggleEnabled()
	default:
		monitoring.Logf("headtrack: ignoring unknown %s", c)
	}
}

// Recenter makes the next valid sample the new zero pose.
func (s *Session) Recenter() {
	s.tracker.Recenter()
	monitoring.Logf("head tracking recentered")
}

// ToggleEnabled flips the user's tracking switch and returns the new value.
func (s *Session) ToggleEnabled() bool {
	on := s.tracker.Session().Toggle()
	monitoring.Logf("head tracking %s", enabledString(on))
	return on
}

func enabledString(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

// Host event handlers. The host delivers each exactly once per transition.

func (s *Session) OnEnterPiloting()   { s.suspend(pose.SuspendPiloting) }
func (s *Session) OnExitPiloting()    { s.resume(pose.SuspendPiloting) }
func (s *Session) OnEnterToolZoom()   { s.suspend(pose.SuspendToolZoom) }
func (s *Session) OnExitToolZoom()    { s.resume(pose.SuspendToolZoom) }
func (s *Session) OnEnterPause()      { s.suspend(pose.SuspendPause) }
func (s *Session) OnExitPause()       { s.resume(pose.SuspendPause) }
func (s *Session) OnResumeFromPause() { s.resume(pose.SuspendPause) }

func (s *Session) suspend(src pose.SuspendSource) {
	s.tracker.Session().Suspend(src)
	monitoring.Debugf("headtrack: suspended by %s", src)
}

func (s *Session) resume(src pose.SuspendSource) {
	s.tracker.Session().Resume(src)
	monitoring.Debugf("headtrack: resumed from %s", src)
}

// trackingActive reports whether head tracking currently contributes a
// rotation.
func (s *Session) trackingActive() bool {
	return s.tracker.State() == pose.StateCentered && !geom.IsIdentity(s.tracker.Head())
}

// baseFor returns the world-space base rotation for t. When t is a camera
// with readable degrees the base is rebuilt from them, so consumers running
// before Tick see this frame's host rotation.
func (s *Session) baseFor(t host.Transform) geom.Quat {
	if cam, ok := t.(host.Camera); ok {
		if yaw, pitch, ok := cam.Degrees(); ok {
			local := geom.Euler(-pitch, yaw, 0)
			if parent, ok := t.ParentRotation(); ok {
				return geom.Mul(parent, local)
			}
			return local
		}
	}
	return s.tracker.Base()
}

// ForceBase makes t show the un-tracked base rotation until the scope is
// released.
func (s *Session) ForceBase(frame uint64, t host.Transform) *arbiter.Scope {
	if !s.trackingActive() {
		return arbiter.Noop()
	}
	return s.arb.Acquire(frame, t, arbiter.ForceBase, arbiter.BaseTarget(t, s.baseFor(t)))
}

// ForceHead applies head tracking to t ahead of the tracker for consumers that
// run earlier in the frame.
func (s *Session) ForceHead(frame uint64, t host.Transform) *arbiter.Scope {
	if !s.trackingActive() || s.tracker.HasHeadTracking(frame) {
		return arbiter.Noop()
	}
	return s.arb.Acquire(frame, t, arbiter.ForceHead, arbiter.HeadTarget(t, s.baseFor(t), s.tracker.Head()))
}

// WithBase runs fn with t forced to its base rotation. A panic in fn is logged
// and swallowed, and the override is always released.
func (s *Session) WithBase(frame uint64, t host.Transform, fn func()) {
	s.with(s.ForceBase(frame, t), "base", fn)
}

// WithHead runs fn with head tracking forced onto t.
func (s *Session) WithHead(frame uint64, t host.Transform, fn func()) {
	s.with(s.ForceHead(frame, t), "head", fn)
}

func (s *Session) with(scope *arbiter.Scope, kind string, fn func()) {
	defer func() {
		scope.Release()
		if r := recover(); r != nil {
			monitoring.Logf("headtrack: consumer panicked under %s override: %v", kind, r)
		}
	}()
	fn()
}

// AimDirection is the forward vector the host's own aim uses, without head
// tracking. The reticle and projectile origin follow it.
func (s *Session) AimDirection() geom.Vec3 {
	return geom.Rotate(s.baseFor(s.cam), geom.Forward)
}

// ScopeDirection is the forward vector directional tools use: the base aim
// plus head tracking when active.
func (s *Session) ScopeDirection() geom.Vec3 {
	base := s.baseFor(s.cam)
	if !s.trackingActive() {
		return geom.Rotate(base, geom.Forward)
	}
	return geom.Rotate(geom.Mul(base, s.tracker.Head()), geom.Forward)
}

// AllowHostLockOn reports whether the host may run its own camera lock-on.
// It is false while tracking is centered.
func (s *Session) AllowHostLockOn() bool {
	return s.tracker.State() != pose.StateCentered
}

// Close shuts the sensor link down.
func (s *Session) Close() error {
	if sd, ok := s.link.(shutdowner); ok {
		sd.Shutdown()
	}
	monitoring.Logf("head tracking session %s closed", s.id)
	return nil
}
