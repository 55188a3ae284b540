// Package storage persists runs as a directory holding metadata.json, the
// scene config.yaml and node and body trajectories as CSV.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/san-kum/cablefea/internal/config"
	"github.com/san-kum/cablefea/internal/dynamo"
	"github.com/san-kum/cablefea/internal/sim"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Scene      string             `json:"scene"`
	Timestamp  time.Time          `json:"timestamp"`
	Dt         float64            `json:"dt"`
	Steps      int                `json:"steps"`
	StepsTaken int                `json:"steps_taken"`
	Integrator string             `json:"integrator"`
	Solver     string             `json:"solver"`
	Nodes      int                `json:"nodes"`
	Frames     int                `json:"frames"`
	Metrics    map[string]float64 `json:"metrics"`
	Error      string             `json:"error,omitempty"`
}

// NodeRecord is one row of nodes.csv.
type NodeRecord struct {
	Step int     `csv:"step"`
	Time float64 `csv:"time"`
	Node int     `csv:"node"`
	X    float64 `csv:"x"`
	Y    float64 `csv:"y"`
	Z    float64 `csv:"z"`
	VX   float64 `csv:"vx"`
	VY   float64 `csv:"vy"`
	VZ   float64 `csv:"vz"`
}

// BodyRecord is one row of bodies.csv.
type BodyRecord struct {
	Step int     `csv:"step"`
	Time float64 `csv:"time"`
	Name string  `csv:"name"`
	X    float64 `csv:"x"`
	Y    float64 `csv:"y"`
	Z    float64 `csv:"z"`
}

// Save writes a run and returns its id. runErr, if any, is recorded in the
// metadata so failed runs stay inspectable.
func (s *Store) Save(cfg *config.Config, result *sim.Result, runErr error) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%d", cfg.Scene, now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		Scene:      cfg.Scene,
		Timestamp:  now,
		Dt:         cfg.Dt,
		Steps:      cfg.Steps,
		StepsTaken: result.StepsTaken,
		Integrator: cfg.Integrator,
		Solver:     cfg.Solver.Type,
		Nodes:      cfg.Cable.Elements + 1,
		Frames:     len(result.Frames),
		Metrics:    result.Metrics,
	}
	if runErr != nil {
		meta.Error = runErr.Error()
	}

	if err := writeJSON(filepath.Join(runDir, "metadata.json"), meta); err != nil {
		return "", err
	}
	if err := config.Save(filepath.Join(runDir, "config.yaml"), cfg); err != nil {
		return "", err
	}

	nodes, bodies := Records(result.Frames)
	if err := writeCSV(filepath.Join(runDir, "nodes.csv"), &nodes); err != nil {
		return "", err
	}
	if len(bodies) > 0 {
		if err := writeCSV(filepath.Join(runDir, "bodies.csv"), &bodies); err != nil {
			return "", err
		}
	}

	return runID, nil
}

// Records flattens frames into trajectory rows.
func Records(frames []*dynamo.Frame) ([]*NodeRecord, []*BodyRecord) {
	var nodes []*NodeRecord
	var bodies []*BodyRecord
	for _, f := range frames {
		for _, n := range f.Nodes {
			nodes = append(nodes, &NodeRecord{
				Step: f.Step, Time: f.Time, Node: int(n.ID),
				X: n.Pos.X(), Y: n.Pos.Y(), Z: n.Pos.Z(),
				VX: n.Vel.X(), VY: n.Vel.Y(), VZ: n.Vel.Z(),
			})
		}
		for _, b := range f.Bodies {
			bodies = append(bodies, &BodyRecord{
				Step: f.Step, Time: f.Time, Name: b.Name,
				X: b.Pos.X(), Y: b.Pos.Y(), Z: b.Pos.Z(),
			})
		}
	}
	return nodes, bodies
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCSV(path string, records any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(records, f); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// List returns the metadata of every stored run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadConfig returns the scene config a run was made with.
func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	return config.Load(filepath.Join(s.baseDir, runID, "config.yaml"))
}

func (s *Store) LoadNodes(runID string) ([]*NodeRecord, error) {
	var records []*NodeRecord
	if err := readCSV(filepath.Join(s.baseDir, runID, "nodes.csv"), &records); err != nil {
		return nil, err
	}
	return records, nil
}

// LoadBodies returns the body trajectory, or nothing for runs without
// bodies.
func (s *Store) LoadBodies(runID string) ([]*BodyRecord, error) {
	var records []*BodyRecord
	err := readCSV(filepath.Join(s.baseDir, runID, "bodies.csv"), &records)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return records, nil
}

func readCSV(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := gocsv.UnmarshalFile(f, out); err != nil {
		return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Profile returns the node positions recorded at step, ordered by node id.
func Profile(records []*NodeRecord, step int) []*NodeRecord {
	var out []*NodeRecord
	for _, r := range records {
		if r.Step == step {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Node < out[j].Node })
	return out
}
