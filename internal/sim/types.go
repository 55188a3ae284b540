package sim

import "github.com/san-kum/cablefea/internal/dynamo"

// Metric accumulates a scalar over the frames of a run.
type Metric interface {
	Name() string
	Observe(f *dynamo.Frame)
	Value() float64
	Reset()
}

// Observer receives every completed step. Frames are deep copies and may
// be retained.
type Observer interface {
	OnStep(f *dynamo.Frame)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(f *dynamo.Frame)

func (fn ObserverFunc) OnStep(f *dynamo.Frame) { fn(f) }

type Config struct {
	Dt    float64
	Steps int
	// RecordEvery keeps every n-th frame in the Result; 0 keeps only the
	// initial and final frames.
	RecordEvery int
}

func DefaultConfig() Config {
	return Config{
		Dt:          0.01,
		Steps:       200,
		RecordEvery: 1,
	}
}

// Duration is the simulated time span of a run.
func (c Config) Duration() float64 {
	return c.Dt * float64(c.Steps)
}

type Result struct {
	Frames     []*dynamo.Frame
	Metrics    map[string]float64
	StepsTaken int
}

// Final returns the last recorded frame.
func (r *Result) Final() *dynamo.Frame {
	if len(r.Frames) == 0 {
		return nil
	}
	return r.Frames[len(r.Frames)-1]
}

// Times returns the time stamp of every recorded frame.
func (r *Result) Times() []float64 {
	t := make([]float64, len(r.Frames))
	for i, f := range r.Frames {
		t[i] = f.Time
	}
	return t
}
