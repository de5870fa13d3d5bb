package pose

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Damping shapes how head-tracking influence falls off while the host moves
// the camera on its own (scripted framing, lock-on). Speeds are in degrees per
// frame.
type Damping struct {
	// Threshold is the host camera speed below which influence stays at 1.
	Threshold float64
	// Range is the speed span over which influence falls to Floor.
	Range float64
	// Floor is the minimum influence.
	Floor float64
}

// DefaultDamping returns the stock damping curve.
func DefaultDamping() Damping {
	return Damping{Threshold: 2.0, Range: 8.0, Floor: 0.15}
}

// Influence maps host camera speed to a head-tracking weight in [Floor, 1].
func Influence(speed float64, d Damping) float64 {
	if speed <= d.Threshold || d.Range <= 0 {
		return 1
	}
	r := (speed - d.Threshold) / d.Range
	if r > 1 {
		r = 1
	}
	return 1 + (d.Floor-1)*r
}

// hostSpeed measures how far the host moved its own camera since the previous
// frame, as the Euclidean distance between consecutive yaw/pitch readings. The
// yaw step takes the short way around, so wrapping at 360 is not motion.
type hostSpeed struct {
	last  []float64
	speed float64
}

func (h *hostSpeed) observe(yaw, pitch float64) float64 {
	cur := []float64{yaw, pitch}
	if h.last == nil {
		h.speed = 0
	} else {
		prev := []float64{yaw - wrapDegrees(yaw-h.last[0]), h.last[1]}
		h.speed = floats.Distance(cur, prev, 2)
	}
	h.last = cur
	return h.speed
}

// wrapDegrees maps an angle difference into [-180, 180).
func wrapDegrees(d float64) float64 {
	d = math.Mod(d+180, 360)
	if d < 0 {
		d += 360
	}
	return d - 180
}
