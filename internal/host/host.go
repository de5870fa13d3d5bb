// Package host defines the capability set the head tracker needs from the host
// application's scene graph. The host integration implements these interfaces
// once; the tracking code never looks anything up dynamically.
package host

import (
	"github.com/banshee-data/headtrack/internal/geom"
)

// Transform is a scene-graph node whose local rotation can be read and
// written. ID must be stable for the node's lifetime.
type Transform interface {
	ID() string
	LocalRotation() geom.Quat
	SetLocalRotation(q geom.Quat)
	// ParentRotation returns the parent's world rotation, or false when the
	// node has no parent.
	ParentRotation() (geom.Quat, bool)
}

// Camera is the player camera: a Transform plus the host's own per-frame
// yaw/pitch degrees of freedom. Degrees returns ok=false when the host value
// could not be read this frame.
type Camera interface {
	Transform
	Degrees() (yaw, pitch float64, ok bool)
}

// HookReporter is optionally implemented by host adapters that resolve their
// capabilities lazily. MissingHooks lists the capabilities that could not be
// bound; a non-empty result makes session construction fail.
type HookReporter interface {
	MissingHooks() []string
}

// WorldRotation returns parent ∘ local for t.
func WorldRotation(t Transform) geom.Quat {
	local := t.LocalRotation()
	if parent, ok := t.ParentRotation(); ok {
		return geom.Mul(parent, local)
	}
	return local
}

// ToLocal converts a world rotation into t's local space.
func ToLocal(t Transform, world geom.Quat) geom.Quat {
	if parent, ok := t.ParentRotation(); ok {
		return geom.Mul(geom.Inverse(parent), world)
	}
	return world
}
