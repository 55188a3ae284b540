package analysis

import (
	"errors"
	"math"
	"testing"
)

// decay samples a free vibration with damped frequency fd and damping
// ratio zeta.
func decay(fd, zeta, dt float64, n int, offset float64) []float64 {
	wd := 2 * math.Pi * fd
	wn := wd / math.Sqrt(1-zeta*zeta)
	out := make([]float64, n)
	for i := range out {
		t := float64(i) * dt
		out[i] = offset + math.Exp(-zeta*wn*t)*math.Cos(wd*t)
	}
	return out
}

func TestDominantFrequency(t *testing.T) {
	tests := []struct {
		name string
		fd   float64
		zeta float64
	}{
		{"undamped", 2, 0},
		{"lightly damped", 2, 0.01},
		{"faster", 7, 0.02},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := decay(tt.fd, tt.zeta, 0.01, 500, 0.3)
			f, err := DominantFrequency(x, 0.01)
			if err != nil {
				t.Fatal(err)
			}
			// bins are 1/(n dt) = 0.2 Hz wide
			if math.Abs(f-tt.fd) > 0.2 {
				t.Errorf("frequency = %v, want %v", f, tt.fd)
			}
		})
	}
}

func TestDominantFrequency_Errors(t *testing.T) {
	if _, err := DominantFrequency([]float64{1, 2}, 0.01); !errors.Is(err, ErrTooShort) {
		t.Errorf("short signal: %v", err)
	}
	if _, err := DominantFrequency(make([]float64, 16), 0); !errors.Is(err, ErrTooShort) {
		t.Errorf("zero dt: %v", err)
	}
	flat := []float64{1, 1, 1, 1, 1, 1, 1, 1}
	if _, err := DominantFrequency(flat, 0.01); !errors.Is(err, ErrFlat) {
		t.Errorf("flat signal: %v", err)
	}
}

func TestSpectrumFrequencies(t *testing.T) {
	freqs, power, err := Spectrum(decay(5, 0, 0.01, 100, 0), 0.01)
	if err != nil {
		t.Fatal(err)
	}
	if len(freqs) != 51 || len(power) != 51 {
		t.Fatalf("got %d bins", len(freqs))
	}
	if freqs[50] != 50 {
		t.Errorf("nyquist bin = %v Hz", freqs[50])
	}
}

func TestDampingRatio(t *testing.T) {
	for _, zeta := range []float64{0.01, 0.05, 0.1} {
		got, err := DampingRatio(decay(2, zeta, 0.01, 400, 0))
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(got-zeta) > 1e-6 {
			t.Errorf("zeta = %v, want %v", got, zeta)
		}
	}

	if _, err := DampingRatio([]float64{0, 1, 0}); !errors.Is(err, ErrNotOscillating) {
		t.Errorf("single peak: %v", err)
	}
}
