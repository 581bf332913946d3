package drift

import (
	"math/rand"
	"testing"
)

func TestStationaryStreamStaysQuiet(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	d := New(0.002)
	for i := 0; i < 500; i++ {
		if d.Update(0.5 + rng.Float64()*0.02) {
			t.Fatalf("false positive on stationary stream at step %d", i)
		}
	}
	if d.Width() != 500 {
		t.Fatalf("window should cover the whole stationary stream, got %d", d.Width())
	}
}

func TestMeanShiftDetected(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	d := New(0.002)
	for i := 0; i < 300; i++ {
		d.Update(0.8 + rng.Float64()*0.01)
	}
	detected := false
	for i := 0; i < 300; i++ {
		if d.Update(-0.8 + rng.Float64()*0.01) {
			detected = true
			break
		}
	}
	if !detected {
		t.Fatalf("large mean shift never detected")
	}
	if d.Width() >= 600 {
		t.Fatalf("detection must shrink the window, width=%d", d.Width())
	}
}

func TestDefaultDelta(t *testing.T) {
	d := New(0)
	if d.delta != 0.002 {
		t.Fatalf("want default delta 0.002, got %v", d.delta)
	}
}
