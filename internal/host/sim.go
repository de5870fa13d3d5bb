package host

import (
	"github.com/banshee-data/headtrack/internal/geom"
)

// SimTransform is an in-memory Transform used by the simulator and tests.
type SimTransform struct {
	Name   string
	Local  geom.Quat
	Parent *SimTransform
	Writes int
}

// NewSimTransform returns a parentless transform at the identity rotation.
func NewSimTransform(name string) *SimTransform {
	return &SimTransform{Name: name, Local: geom.Identity()}
}

func (s *SimTransform) ID() string { return s.Name }

func (s *SimTransform) LocalRotation() geom.Quat { return s.Local }

func (s *SimTransform) SetLocalRotation(q geom.Quat) {
	s.Local = q
	s.Writes++
}

func (s *SimTransform) ParentRotation() (geom.Quat, bool) {
	if s.Parent == nil {
		return geom.Quat{}, false
	}
	return WorldRotation(s.Parent), true
}

// SimCamera is a SimTransform driven by host yaw/pitch degrees, mirroring a
// first-person camera controller that writes its own rotation every frame.
type SimCamera struct {
	SimTransform
	Yaw, Pitch float64
	// Unreadable makes Degrees report failure, simulating a host field that
	// could not be read.
	Unreadable bool
	Missing    []string
}

// NewSimCamera returns a parentless camera facing forward.
func NewSimCamera(name string) *SimCamera {
	return &SimCamera{SimTransform: SimTransform{Name: name, Local: geom.Identity()}}
}

func (c *SimCamera) Degrees() (float64, float64, bool) {
	if c.Unreadable {
		return 0, 0, false
	}
	return c.Yaw, c.Pitch, true
}

func (c *SimCamera) MissingHooks() []string { return c.Missing }

// Drive sets the host degrees and writes the host's own camera rotation, the
// way the host controller does before the tracker runs.
func (c *SimCamera) Drive(yaw, pitch float64) {
	c.Yaw, c.Pitch = yaw, pitch
	c.SetLocalRotation(geom.Euler(-pitch, yaw, 0))
}
