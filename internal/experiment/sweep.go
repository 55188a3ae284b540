package experiment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/cablefea/internal/config"
	"github.com/san-kum/cablefea/internal/dynamo"
	"github.com/san-kum/cablefea/internal/sim"
)

// SweepPoint is the outcome of one payload mass in a sweep.
type SweepPoint struct {
	Mass    float64
	Metrics map[string]float64
	Final   *dynamo.Frame
}

// SweepPayload runs base once per payload mass, concurrently, and returns
// the points in the order of masses. A base without a payload gets the
// default cylinder.
func SweepPayload(ctx context.Context, base *config.Config, masses []float64, log *slog.Logger) ([]SweepPoint, error) {
	if len(masses) == 0 {
		return nil, fmt.Errorf("sweep needs at least one mass")
	}
	reg := NewRegistry()
	cfgs := make([]*config.Config, len(masses))
	for i, m := range masses {
		if !(m > 0) {
			return nil, fmt.Errorf("payload mass must be positive, got %g", m)
		}
		c := base.Clone()
		if c.Payload == nil {
			c.Payload = &config.PayloadConfig{Radius: 0.01, Height: 0.1}
		}
		c.Payload.Mass = m
		cfgs[i] = c
	}

	ens := sim.NewEnsemble(func(i int) (*dynamo.System, error) {
		scene, err := Build(cfgs[i], reg, log)
		if err != nil {
			return nil, err
		}
		return scene.System, nil
	}, len(masses)).WithMetrics(func() []sim.Metric {
		return reg.DefaultMetrics(base)
	})

	simCfg := sim.Config{Dt: base.Dt, Steps: base.Steps, RecordEvery: 0}
	results, err := ens.Run(ctx, simCfg)
	if err != nil {
		return nil, err
	}

	points := make([]SweepPoint, len(masses))
	for i, r := range results {
		points[i] = SweepPoint{Mass: masses[i], Metrics: r.Metrics, Final: r.Final()}
	}
	return points, nil
}
