package monitoring

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTracePlotter_Save(t *testing.T) {
	p := NewTracePlotter("replay")
	for i := 0; i < 50; i++ {
		p.Add(TraceSample{
			Frame:     uint64(i),
			Yaw:       float64(i) * 0.5,
			Pitch:     -float64(i) * 0.1,
			Influence: 1,
			Valid:     i%10 != 0,
		})
	}
	if p.Len() != 50 {
		t.Fatalf("Len() = %d, want 50", p.Len())
	}

	out := filepath.Join(t.TempDir(), "trace.png")
	if err := p.Save(out); err != nil {
		t.Fatalf("Save: %v", err)
	}
	for _, f := range []string{out, InfluencePath(out)} {
		info, err := os.Stat(f)
		if err != nil {
			t.Fatalf("expected %s: %v", f, err)
		}
		if info.Size() == 0 {
			t.Errorf("%s is empty", f)
		}
	}
}

func TestTracePlotter_SaveEmpty(t *testing.T) {
	p := NewTracePlotter("empty")
	if err := p.Save(filepath.Join(t.TempDir(), "trace.png")); err == nil {
		t.Error("expected error for empty plot")
	}
}

func TestInfluencePath(t *testing.T) {
	if got := InfluencePath("/tmp/run.png"); got != "/tmp/run_influence.png" {
		t.Errorf("InfluencePath() = %q", got)
	}
}
