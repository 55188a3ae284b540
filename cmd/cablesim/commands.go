package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/cablefea/internal/automation"
	"github.com/san-kum/cablefea/internal/config"
	"github.com/san-kum/cablefea/internal/dynamo"
	"github.com/san-kum/cablefea/internal/experiment"
	"github.com/san-kum/cablefea/internal/export"
	"github.com/san-kum/cablefea/internal/fea"
	"github.com/san-kum/cablefea/internal/optim"
	"github.com/san-kum/cablefea/internal/storage"
	"github.com/san-kum/cablefea/internal/viz"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func store() (*storage.Store, error) {
	st := storage.New(viper.GetString("data"))
	return st, st.Init()
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	st, err := store()
	if err != nil {
		return err
	}

	exp := experiment.New(cfg, slog.Default())
	if err := exp.Setup(nil); err != nil {
		return err
	}
	if !quiet && !asJSON {
		exp.Simulator().AddObserver(viz.NewProgress(os.Stderr, max(cfg.Steps/20, 1), cfg.Steps))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Fprintf(os.Stderr, "running %s (%d steps of %gs)...\n", cfg.Scene, cfg.Steps, cfg.Dt)
	start := time.Now()
	result, runErr := exp.Run(ctx)
	if result == nil {
		return runErr
	}
	elapsed := time.Since(start)

	runID, err := st.Save(cfg, result, runErr)
	if err != nil {
		return errors.Join(runErr, err)
	}

	if svgPath != "" {
		if err := export.WriteProfileSVG(svgPath, result.Frames, 800, 600); err != nil {
			return errors.Join(runErr, err)
		}
	}

	if asJSON {
		if err := storage.WriteJSON(os.Stdout, cfg, result); err != nil {
			return err
		}
		return runErr
	}

	fmt.Printf("completed in %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("run id: %s\n", runID)
	fmt.Println(viz.Summary(cfg.Scene, result))
	if final := result.Final(); final != nil {
		fmt.Println(viz.Profile(final, 60, 10))
	}
	return runErr
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	// keep warnings from corrupting the alternate screen
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	scene, err := experiment.Build(cfg, nil, log)
	if err != nil {
		return err
	}

	model := viz.NewModel(scene.System, cfg.Scene, cfg.Dt, substeps, cfg.Steps)
	final, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}
	if m, ok := final.(viz.Model); ok && m.Err() != nil {
		return m.Err()
	}
	return nil
}

func runStatic(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	exp := experiment.New(cfg, slog.Default())
	if err := exp.Setup(nil); err != nil {
		return err
	}

	frame, err := exp.Analyze(analysis)
	if err != nil {
		return err
	}

	tip, _ := frame.Node(exp.Scene().Tip())
	_, rest := experiment.TipOf(cfg)
	fmt.Println(viz.HeaderStyle.Render(fmt.Sprintf("%s: %s", cfg.Scene, analysis)))
	fmt.Println(viz.Row("tip", fmt.Sprintf("(%.5f, %.5f, %.5f)", tip.Pos.X(), tip.Pos.Y(), tip.Pos.Z())))
	fmt.Println(viz.Row("tip sag", fmt.Sprintf("%.6f m", rest.Y()-tip.Pos.Y())))
	fmt.Println(viz.Row("violation", fmt.Sprintf("%.3e", frame.MaxViolation)))
	for _, c := range frame.Constraints {
		r := c.Reaction
		fmt.Println(viz.Row(fmt.Sprintf("%s @%d", c.Kind, c.Node), fmt.Sprintf("reaction (%.4f, %.4f, %.4f) N", r.X(), r.Y(), r.Z())))
	}
	fmt.Println(viz.Profile(frame, 60, 10))
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Fprintf(os.Stderr, "sweeping %d payload masses...\n", len(masses))
	points, err := experiment.SweepPayload(ctx, cfg, masses, slog.Default())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MASS\tTIP SAG\tMAX VIOLATION\tKINETIC ENERGY")
	sags := make([]float64, len(points))
	for i, p := range points {
		sags[i] = p.Metrics["tip_sag"]
		fmt.Fprintf(w, "%.4f\t%.6f\t%.3e\t%.3e\n", p.Mass, sags[i], p.Metrics["max_violation"], p.Metrics["kinetic_energy"])
	}
	w.Flush()

	if chart := viz.History(sags, "tip sag by payload", 40, 8); chart != "" {
		fmt.Println("\n" + chart)
	}
	return nil
}

// runWatch reruns the scene each time its config file changes.
func runWatch(cmd *cobra.Command, args []string) error {
	path := viper.GetString("config")
	if path == "" {
		return fmt.Errorf("watch needs --config")
	}
	w, err := config.NewWatcher(path)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	for {
		if err := watchRun(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		fmt.Fprintf(os.Stderr, "watching %s for changes...\n", w.Path)

		select {
		case <-ctx.Done():
			return nil
		case u := <-w.Updates:
			if u.Err != nil {
				fmt.Fprintln(os.Stderr, "error:", u.Err)
			}
		}
	}
}

func watchRun(ctx context.Context) error {
	// reload through resolveConfig so flag overrides still apply
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	exp := experiment.New(cfg, slog.Default())
	if err := exp.Setup(nil); err != nil {
		return err
	}
	result, err := exp.Run(ctx)
	if result != nil {
		fmt.Println(viz.Summary(cfg.Scene, result))
		if final := result.Final(); final != nil {
			fmt.Println(viz.Profile(final, 60, 10))
		}
	}
	return err
}

func runBatch(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	st, err := store()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Fprintf(os.Stderr, "running scenario %s (%d runs)...\n", scenario.Name, len(scenario.Runs))
	outcomes, err := automation.RunScenario(ctx, scenario, slog.Default())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tID\tSTEPS\tTIP SAG\tSTATUS")
	for _, o := range outcomes {
		runID, saveErr := st.Save(o.Config, o.Result, o.Err)
		if saveErr != nil {
			return errors.Join(err, saveErr)
		}
		status := "ok"
		if o.Err != nil {
			status = o.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%.6f\t%s\n", o.Name, runID, o.Result.StepsTaken, o.Result.Metrics["tip_sag"], status)
	}
	w.Flush()
	return err
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	mc := &automation.MonteCarloConfig{
		Base:          cfg,
		Trials:        viper.GetInt("trials"),
		Seed:          viper.GetInt64("seed"),
		ModulusSpread: viper.GetFloat64("modulus-spread"),
		MassSpread:    viper.GetFloat64("mass-spread"),
	}
	fmt.Fprintf(os.Stderr, "running %d monte carlo trials...\n", mc.Trials)
	res, err := automation.RunMonteCarlo(ctx, mc, slog.Default())
	if err != nil {
		return err
	}

	fmt.Printf("tip sag  mean %.6f  std %.6f\n", res.Mean, res.StdDev)
	if chart := viz.History(res.TipSag, "tip sag by trial", 40, 8); chart != "" {
		fmt.Println("\n" + chart)
	}
	return nil
}

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	search, err := optim.ParseGrid(grid)
	if err != nil {
		return fmt.Errorf("%w (parameters: %v)", err, optim.Params())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	objective := optim.TargetMetric(viper.GetString("metric"), viper.GetFloat64("target"))
	best, err := search.Search(ctx, cfg, objective, slog.Default())
	if err != nil {
		return err
	}

	names := make([]string, 0, len(best.Params))
	for k := range best.Params {
		names = append(names, k)
	}
	slices.Sort(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, k := range names {
		fmt.Fprintf(w, "%s\t%g\n", k, best.Params[k])
	}
	fmt.Fprintf(w, "score\t%.6g\n", best.Score)
	fmt.Fprintf(w, "evaluated\t%d (%d failed)\n", best.Evaluated, best.Failed)
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := store()
	if err != nil {
		return err
	}
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENE\tSTEPS\tTIP SAG\tSTATUS")
	for _, r := range runs {
		status := "ok"
		if r.Error != "" {
			status = "failed"
		}
		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%.5f\t%s\n", r.ID, r.Scene, r.StepsTaken, r.Steps, r.Metrics["tip_sag"], status)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	st, err := store()
	if err != nil {
		return err
	}
	runID := args[0]
	meta, err := st.Load(runID)
	if err != nil {
		return fmt.Errorf("run %s: %w", runID, err)
	}
	nodes, err := st.LoadNodes(runID)
	if err != nil {
		return err
	}

	fmt.Println(viz.HeaderStyle.Render(meta.ID))
	fmt.Println(viz.Row("scene", meta.Scene))
	fmt.Println(viz.Row("integrator", meta.Integrator))
	fmt.Println(viz.Row("solver", meta.Solver))
	fmt.Println(viz.Row("steps", fmt.Sprintf("%d/%d", meta.StepsTaken, meta.Steps)))
	fmt.Println(viz.Row("recorded at", meta.Timestamp.Format(time.RFC3339)))
	if meta.Error != "" {
		fmt.Println(viz.StatusFailed.Render(meta.Error))
	}
	for name, v := range meta.Metrics {
		fmt.Println(viz.Row(name, fmt.Sprintf("%.6g", v)))
	}

	var tipY []float64
	last := 0
	for _, r := range nodes {
		if r.Node == meta.Nodes-1 {
			tipY = append(tipY, r.Y)
		}
		last = max(last, r.Step)
	}
	if chart := viz.History(tipY, "tip height over recorded frames", 60, 8); chart != "" {
		fmt.Println("\n" + chart)
	}
	if frame := recordedFrame(storage.Profile(nodes, last)); len(frame.Nodes) > 0 {
		fmt.Println("\n" + viz.Profile(frame, 60, 10))
	}
	if svgPath != "" {
		if err := export.WriteProfileSVG(svgPath, recordedFrames(nodes), 800, 600); err != nil {
			return err
		}
		fmt.Println("wrote", svgPath)
	}
	return nil
}

// recordedFrames rebuilds every stored step in order.
func recordedFrames(rows []*storage.NodeRecord) []*dynamo.Frame {
	var steps []int
	seen := make(map[int]bool)
	for _, r := range rows {
		if !seen[r.Step] {
			seen[r.Step] = true
			steps = append(steps, r.Step)
		}
	}
	slices.Sort(steps)

	frames := make([]*dynamo.Frame, len(steps))
	for i, step := range steps {
		frames[i] = recordedFrame(storage.Profile(rows, step))
	}
	return frames
}

// recordedFrame rebuilds the node positions of one stored step.
func recordedFrame(rows []*storage.NodeRecord) *dynamo.Frame {
	f := &dynamo.Frame{Nodes: make([]dynamo.NodeState, len(rows))}
	for i, r := range rows {
		f.Step, f.Time = r.Step, r.Time
		f.Nodes[i] = dynamo.NodeState{
			ID:  fea.NodeID(r.Node),
			Pos: mgl64.Vec3{r.X, r.Y, r.Z},
			Vel: mgl64.Vec3{r.VX, r.VY, r.VZ},
		}
	}
	return f
}

func showPresets(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		for _, name := range config.ListPresets() {
			c := config.GetPreset(name)
			fmt.Printf("%-18s %s, %d elements, %s support, %s solver\n",
				name, c.Integrator, c.Cable.Elements, c.Cable.Support, c.Solver.Type)
		}
		return nil
	}
	cfg := config.GetPreset(args[0])
	if cfg == nil {
		return fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets())
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}
