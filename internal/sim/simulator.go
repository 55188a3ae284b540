// Package sim drives a dynamo.System through a fixed-step run, handing
// every completed step to metrics and observers.
package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/cablefea/internal/dynamo"
)

type Simulator struct {
	sys       *dynamo.System
	metrics   []Metric
	observers []Observer
}

func New(sys *dynamo.System) *Simulator {
	return &Simulator{
		sys:       sys,
		metrics:   make([]Metric, 0),
		observers: make([]Observer, 0),
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// System returns the driven system.
func (s *Simulator) System() *dynamo.System { return s.sys }

// Run finalizes the system if needed and takes cfg.Steps steps.
// Cancellation is checked between steps. On a step error the partial
// result is returned together with the error.
func (s *Simulator) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}
	if err := s.sys.Finalize(); err != nil {
		return nil, err
	}

	capacity := 2
	if cfg.RecordEvery > 0 {
		capacity = cfg.Steps/cfg.RecordEvery + 2
	}
	result := &Result{
		Frames:  make([]*dynamo.Frame, 0, capacity),
		Metrics: make(map[string]float64),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	frame := s.sys.Frame()
	result.Frames = append(result.Frames, frame)

	finish := func() {
		if last := result.Final(); last != frame {
			result.Frames = append(result.Frames, frame)
		}
		for _, m := range s.metrics {
			result.Metrics[m.Name()] = m.Value()
		}
	}

	for i := 0; i < cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			finish()
			return result, ctx.Err()
		default:
		}

		if err := s.sys.Step(cfg.Dt); err != nil {
			finish()
			return result, err
		}
		result.StepsTaken++

		frame = s.sys.Frame()
		for _, m := range s.metrics {
			m.Observe(frame)
		}
		for _, obs := range s.observers {
			obs.OnStep(frame)
		}
		if cfg.RecordEvery > 0 && result.StepsTaken%cfg.RecordEvery == 0 {
			result.Frames = append(result.Frames, frame)
		}
	}

	finish()
	return result, nil
}

func (s *Simulator) validateConfig(cfg Config) error {
	if !(cfg.Dt > 0) || math.IsInf(cfg.Dt, 0) {
		return fmt.Errorf("dt must be positive, got %f", cfg.Dt)
	}
	if cfg.Steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", cfg.Steps)
	}
	if cfg.RecordEvery < 0 {
		return fmt.Errorf("record interval must not be negative, got %d", cfg.RecordEvery)
	}
	return nil
}

// RunWithCallback steps until cfg.Steps is reached, the callback returns
// false or the context is canceled. The callback sees the initial frame
// first.
func (s *Simulator) RunWithCallback(ctx context.Context, cfg Config, callback func(*dynamo.Frame) bool) error {
	if err := s.validateConfig(cfg); err != nil {
		return err
	}
	if err := s.sys.Finalize(); err != nil {
		return err
	}

	frame := s.sys.Frame()
	for i := 0; i < cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !callback(frame) {
			return nil
		}
		if err := s.sys.Step(cfg.Dt); err != nil {
			return err
		}
		frame = s.sys.Frame()
	}
	callback(frame)
	return nil
}
