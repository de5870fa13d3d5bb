// Package arbiter serializes temporary rotation overrides on shared scene
// transforms.
//
// Consumers that need the camera to briefly look un-tracked (or tracked ahead
// of schedule) acquire a Scope, do their work, and release it. Acquisitions
// nest per (transform, kind): only the outermost acquire saves and writes,
// only the outermost release restores. An override left active by a consumer
// that never released it is restored at the start of the next acquisition in a
// later frame.
package arbiter

import (
	"fmt"
	"sort"

	"github.com/banshee-data/headtrack/internal/geom"
	"github.com/banshee-data/headtrack/internal/host"
	"github.com/banshee-data/headtrack/internal/monitoring"
)

// Kind selects which rotation an override writes.
type Kind int

const (
	// ForceBase shows the camera without head tracking.
	ForceBase Kind = iota
	// ForceHead applies head tracking before the tracker has run this frame.
	ForceHead
)

func (k Kind) String() string {
	switch k {
	case ForceBase:
		return "force-base"
	case ForceHead:
		return "force-head"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

type key struct {
	id   string
	kind Kind
}

type override struct {
	transform host.Transform
	kind      Kind

	saved             geom.Quat
	active            bool
	depth             int
	lastModifiedFrame uint64
	generation        uint64
	seq               uint64
}

// Arbiter tracks overrides for any number of transforms. It is used from the
// frame loop only and is not safe for concurrent use.
type Arbiter struct {
	overrides map[key]*override
	seq       uint64
	heals     int
}

// New returns an empty arbiter.
func New() *Arbiter {
	return &Arbiter{overrides: make(map[key]*override)}
}

// Acquire claims t's rotation for kind and writes target on the outermost
// acquisition. The returned scope must be released, normally via defer.
func (a *Arbiter) Acquire(frame uint64, t host.Transform, kind Kind, target geom.Quat) *Scope {
	a.heal(frame)

	k := key{id: t.ID(), kind: kind}
	o, ok := a.overrides[k]
	if !ok {
		o = &override{transform: t, kind: kind}
		a.overrides[k] = o
	}

	if o.depth == 0 {
		a.seq++
		o.seq = a.seq
		o.saved = t.LocalRotation()
		o.active = true
		o.transform = t
		t.SetLocalRotation(target)
	}
	o.depth++
	o.lastModifiedFrame = frame

	return &Scope{arbiter: a, o: o, generation: o.generation, frame: frame}
}

// heal restores every override still active from an earlier frame, newest
// first, so the oldest saved rotation is what remains on each transform.
func (a *Arbiter) heal(frame uint64) {
	var stale []*override
	for _, o := range a.overrides {
		if o.active && o.lastModifiedFrame != frame {
			stale = append(stale, o)
		}
	}
	if len(stale) == 0 {
		return
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].seq > stale[j].seq })
	for _, o := range stale {
		monitoring.Logf("arbiter: restoring stale %s override on %s (depth %d, frame %d)",
			o.kind, o.transform.ID(), o.depth, o.lastModifiedFrame)
		o.transform.SetLocalRotation(o.saved)
		a.reset(o)
		a.heals++
	}
}

func (a *Arbiter) reset(o *override) {
	o.active = false
	o.depth = 0
	o.generation++
}

func (a *Arbiter) release(s *Scope) {
	o := s.o
	if o.generation != s.generation || o.depth == 0 {
		monitoring.Debugf("arbiter: ignoring release of invalidated %s scope on %s", o.kind, o.transform.ID())
		return
	}
	o.depth--
	o.lastModifiedFrame = s.frame
	if o.depth == 0 {
		o.transform.SetLocalRotation(o.saved)
		o.active = false
	}
}

// Depth returns the current nesting depth for t and kind.
func (a *Arbiter) Depth(t host.Transform, kind Kind) int {
	if o, ok := a.overrides[key{id: t.ID(), kind: kind}]; ok {
		return o.depth
	}
	return 0
}

// Active returns how many overrides currently hold a transform.
func (a *Arbiter) Active() int {
	n := 0
	for _, o := range a.overrides {
		if o.active {
			n++
		}
	}
	return n
}

// Heals returns how many stale overrides have been force-restored.
func (a *Arbiter) Heals() int { return a.heals }

// Scope is one acquisition. Releasing a nil Scope or one from Noop does
// nothing.
type Scope struct {
	arbiter    *Arbiter
	o          *override
	generation uint64
	frame      uint64
	released   bool
}

// Noop returns a scope that does nothing on release.
func Noop() *Scope {
	return &Scope{released: true}
}

// Release ends the acquisition. Calling it more than once, or after the
// override was force-restored, has no effect.
func (s *Scope) Release() {
	if s == nil || s.released || s.arbiter == nil {
		return
	}
	s.released = true
	s.arbiter.release(s)
}

// Applied reports whether this scope holds a live acquisition.
func (s *Scope) Applied() bool {
	return s != nil && !s.released && s.arbiter != nil && s.o.generation == s.generation
}

// BaseTarget is the local rotation that makes t face base in world space.
func BaseTarget(t host.Transform, base geom.Quat) geom.Quat {
	return host.ToLocal(t, base)
}

// HeadTarget is the local rotation that applies head on top of base in world
// space.
func HeadTarget(t host.Transform, base, head geom.Quat) geom.Quat {
	return BaseTarget(t, geom.Mul(base, head))
}
