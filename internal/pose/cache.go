package pose

import (
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/banshee-data/headtrack/internal/geom"
)

// RotationCache memoizes the composed head rotation against the inputs that
// produced it.
type RotationCache struct {
	Rotation  geom.Quat
	Yaw       float64
	Pitch     float64
	Roll      float64
	Influence float64
	Frame     uint64
	IsValid   bool
}

// NeedsUpdate reports whether the cached rotation is out of date for the given
// inputs. Inputs within eps of the cached ones reuse the cache; with
// eachFrame set, a new frame index also forces a recompute.
func (c *RotationCache) NeedsUpdate(frame uint64, yaw, pitch, roll, influence, eps float64, eachFrame bool) bool {
	if !c.IsValid {
		return true
	}
	if eachFrame && c.Frame != frame {
		return true
	}
	return !scalar.EqualWithinAbs(yaw, c.Yaw, eps) ||
		!scalar.EqualWithinAbs(pitch, c.Pitch, eps) ||
		!scalar.EqualWithinAbs(roll, c.Roll, eps) ||
		!scalar.EqualWithinAbs(influence, c.Influence, eps)
}

// Update stores a freshly computed rotation and its inputs.
func (c *RotationCache) Update(frame uint64, yaw, pitch, roll, influence float64, q geom.Quat) {
	*c = RotationCache{
		Rotation:  q,
		Yaw:       yaw,
		Pitch:     pitch,
		Roll:      roll,
		Influence: influence,
		Frame:     frame,
		IsValid:   true,
	}
}

// Invalidate forces the next NeedsUpdate to report true.
func (c *RotationCache) Invalidate() {
	c.IsValid = false
}
