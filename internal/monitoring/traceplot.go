package monitoring

import (
	"fmt"
	"image/color"
	"path/filepath"
	"strings"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// TraceSample is one frame of tracker output.
type TraceSample struct {
	Frame     uint64
	Yaw       float64
	Pitch     float64
	Roll      float64
	Influence float64
	Valid     bool
}

// TracePlotter records per-frame tracker output and renders the head offsets
// and influence as images.
type TracePlotter struct {
	mu      sync.Mutex
	title   string
	samples []TraceSample
}

// NewTracePlotter returns an empty plotter.
func NewTracePlotter(title string) *TracePlotter {
	return &TracePlotter{title: title}
}

// Add records a sample.
func (p *TracePlotter) Add(s TraceSample) {
	p.mu.Lock()
	p.samples = append(p.samples, s)
	p.mu.Unlock()
}

// Len returns the number of recorded samples.
func (p *TracePlotter) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.samples)
}

// Save writes the offsets plot to path and the influence plot next to it. The
// image format follows the file extension.
func (p *TracePlotter) Save(path string) error {
	p.mu.Lock()
	samples := append([]TraceSample(nil), p.samples...)
	p.mu.Unlock()

	if len(samples) == 0 {
		return fmt.Errorf("no samples to plot")
	}

	yaw := make(plotter.XYs, 0, len(samples))
	pitch := make(plotter.XYs, 0, len(samples))
	roll := make(plotter.XYs, 0, len(samples))
	infl := make(plotter.XYs, 0, len(samples))
	var lost plotter.XYs
	for _, s := range samples {
		x := float64(s.Frame)
		yaw = append(yaw, plotter.XY{X: x, Y: s.Yaw})
		pitch = append(pitch, plotter.XY{X: x, Y: s.Pitch})
		roll = append(roll, plotter.XY{X: x, Y: s.Roll})
		infl = append(infl, plotter.XY{X: x, Y: s.Influence})
		if !s.Valid {
			lost = append(lost, plotter.XY{X: x, Y: 0})
		}
	}

	offsets := plot.New()
	offsets.Title.Text = p.title
	offsets.X.Label.Text = "Frame"
	offsets.Y.Label.Text = "Offset (°)"

	series := []struct {
		name string
		pts  plotter.XYs
		c    color.Color
	}{
		{"yaw", yaw, color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}},
		{"pitch", pitch, color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}},
		{"roll", roll, color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff}},
	}
	for _, s := range series {
		line, err := plotter.NewLine(s.pts)
		if err != nil {
			return err
		}
		line.Color = s.c
		line.Width = vg.Points(1)
		offsets.Add(line)
		offsets.Legend.Add(s.name, line)
	}
	if len(lost) > 0 {
		sc, err := plotter.NewScatter(lost)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = color.Gray{Y: 0x80}
		sc.GlyphStyle.Radius = vg.Points(1)
		offsets.Add(sc)
		offsets.Legend.Add("no data", sc)
	}
	offsets.Legend.Top = true
	offsets.Legend.Left = false
	offsets.Legend.XOffs = -10
	offsets.Legend.YOffs = -10

	influence := plot.New()
	influence.X.Label.Text = "Frame"
	influence.Y.Label.Text = "Influence"
	influence.Y.Min = 0
	influence.Y.Max = 1.05
	line, err := plotter.NewLine(infl)
	if err != nil {
		return err
	}
	line.Width = vg.Points(1)
	influence.Add(line)

	if err := offsets.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	inflPath := InfluencePath(path)
	if err := influence.Save(14*vg.Inch, 3*vg.Inch, inflPath); err != nil {
		return fmt.Errorf("failed to save %s: %w", inflPath, err)
	}
	return nil
}

// InfluencePath is where Save writes the influence plot for path.
func InfluencePath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_influence" + ext
}
