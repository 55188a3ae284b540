// Package optim tunes scene parameters by exhaustive grid search.
package optim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/san-kum/cablefea/internal/config"
	"github.com/san-kum/cablefea/internal/experiment"
)

var setters = map[string]func(*config.Config, float64){
	"young_modulus": func(c *config.Config, v float64) { c.Cable.YoungModulus = v },
	"density":       func(c *config.Config, v float64) { c.Cable.Density = v },
	"damping":       func(c *config.Config, v float64) { c.Cable.Damping = v },
	"diameter":      func(c *config.Config, v float64) { c.Cable.Diameter = v },
	"length":        func(c *config.Config, v float64) { c.Cable.Length = v },
	"elements":      func(c *config.Config, v float64) { c.Cable.Elements = int(v) },
	"dt":            func(c *config.Config, v float64) { c.Dt = v },
	"payload_mass": func(c *config.Config, v float64) {
		if c.Payload == nil {
			c.Payload = &config.PayloadConfig{Radius: 0.01, Height: 0.1}
		}
		c.Payload.Mass = v
	},
}

// Params lists the tunable parameter names.
func Params() []string {
	names := make([]string, 0, len(setters))
	for k := range setters {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// Objective scores a finished run; lower is better.
type Objective func(cfg *config.Config, metrics map[string]float64) float64

// TargetMetric scores the distance of a metric from a target value.
func TargetMetric(name string, target float64) Objective {
	return func(_ *config.Config, m map[string]float64) float64 {
		return math.Abs(m[name] - target)
	}
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) == 0 || len(params) != len(ranges) {
		return nil, fmt.Errorf("need one value range per parameter")
	}
	for i, p := range params {
		if _, ok := setters[p]; !ok {
			return nil, fmt.Errorf("unknown parameter: %s", p)
		}
		if len(ranges[i]) == 0 {
			return nil, fmt.Errorf("parameter %s has no values", p)
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// ParseGrid parses "name=v1,v2,..." entries.
func ParseGrid(entries []string) (*GridSearch, error) {
	var names []string
	var ranges [][]float64
	for _, entry := range entries {
		name, list, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("grid entry %q is not name=v1,v2", entry)
		}
		var values []float64
		for _, f := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, fmt.Errorf("grid entry %q: %w", entry, err)
			}
			values = append(values, v)
		}
		names = append(names, strings.TrimSpace(name))
		ranges = append(ranges, values)
	}
	return NewGridSearch(names, ranges)
}

// Best is the winning grid point.
type Best struct {
	Params    map[string]float64
	Score     float64
	Metrics   map[string]float64
	Evaluated int
	Failed    int
}

// Search runs base once per grid point. Points whose config is invalid or
// whose run fails are counted and skipped.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, objective Objective, log *slog.Logger) (*Best, error) {
	best := &Best{Score: math.Inf(1)}
	if err := g.searchRecursive(ctx, 0, map[string]float64{}, base, objective, log, best); err != nil {
		return nil, err
	}
	if best.Params == nil {
		return best, fmt.Errorf("all %d grid points failed", best.Failed)
	}
	return best, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	base *config.Config,
	objective Objective,
	log *slog.Logger,
	best *Best,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if depth == len(g.paramNames) {
		cfg := base.Clone()
		for name, v := range current {
			setters[name](cfg, v)
		}

		exp := experiment.New(cfg, log)
		if err := exp.Setup(nil); err != nil {
			log.Debug("grid point rejected", "params", current, "err", err)
			best.Failed++
			return nil
		}
		result, err := exp.Run(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			log.Debug("grid point failed", "params", current, "err", err)
			best.Failed++
			return nil
		}

		best.Evaluated++
		if score := objective(cfg, result.Metrics); score < best.Score {
			best.Score = score
			best.Metrics = result.Metrics
			best.Params = make(map[string]float64, len(current))
			for k, v := range current {
				best.Params[k] = v
			}
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, base, objective, log, best); err != nil {
			return err
		}
	}
	return nil
}
