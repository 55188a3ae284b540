package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/cablefea/internal/config"
	"github.com/san-kum/cablefea/internal/dynamo"
	"github.com/san-kum/cablefea/internal/sim"
)

// ExportData is a self contained JSON dump of one run.
type ExportData struct {
	Scene      string             `json:"scene"`
	Integrator string             `json:"integrator"`
	Solver     string             `json:"solver"`
	Dt         float64            `json:"dt"`
	Steps      int                `json:"steps"`
	Times      []float64          `json:"times"`
	Frames     []*dynamo.Frame    `json:"frames"`
	Metrics    map[string]float64 `json:"metrics"`
}

func newExport(cfg *config.Config, result *sim.Result) ExportData {
	return ExportData{
		Scene:      cfg.Scene,
		Integrator: cfg.Integrator,
		Solver:     cfg.Solver.Type,
		Dt:         cfg.Dt,
		Steps:      result.StepsTaken,
		Times:      result.Times(),
		Frames:     result.Frames,
		Metrics:    result.Metrics,
	}
}

func ExportJSON(path string, cfg *config.Config, result *sim.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, cfg, result)
}

// WriteJSON writes the export to w, typically stdout.
func WriteJSON(w io.Writer, cfg *config.Config, result *sim.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(newExport(cfg, result))
}
