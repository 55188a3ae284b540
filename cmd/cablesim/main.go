package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	dataDir    string
	verbose    bool
	configFile string
	preset     string
	asJSON     bool
	quiet      bool
	analysis   string
	masses     []float64
	substeps   int
	svgPath    string
	grid       []string
)

// main registers the cablesim commands. Flags may also be given as
// CABLESIM_* environment variables, e.g. CABLESIM_DT=0.005.
func main() {
	rootCmd := &cobra.Command{
		Use:           "cablesim",
		Short:         "slender cable finite element dynamics",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			setupLogger()
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".cablesim", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a scene and store the result",
		RunE:  runSimulation,
	}
	sceneFlags(runCmd)
	runCmd.Flags().BoolVar(&asJSON, "json", false, "write the full run as JSON to stdout")
	runCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "no progress lines")
	runCmd.Flags().StringVar(&svgPath, "svg", "", "write recorded cable profiles to an svg file")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "step a scene in an interactive terminal view",
		RunE:  runLive,
	}
	sceneFlags(liveCmd)
	liveCmd.Flags().IntVar(&substeps, "substeps", 2, "steps per rendered frame")

	staticCmd := &cobra.Command{
		Use:   "static",
		Short: "solve the static equilibrium of a scene",
		RunE:  runStatic,
	}
	sceneFlags(staticCmd)
	staticCmd.Flags().StringVar(&analysis, "analysis", "static_nonlinear", "static_linear or static_nonlinear")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "compare tip sag across payload masses",
		RunE:  runSweep,
	}
	sceneFlags(sweepCmd)
	sweepCmd.Flags().Float64SliceVar(&masses, "masses", []float64{0.05, 0.1, 0.2}, "payload masses in kg")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run-id]",
		Short: "show a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}
	showCmd.Flags().StringVar(&svgPath, "svg", "", "write recorded cable profiles to an svg file")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "rerun a scene file every time it is saved",
		RunE:  runWatch,
	}
	sceneFlags(watchCmd)

	batchCmd := &cobra.Command{
		Use:   "batch [scenario.yaml]",
		Short: "run every scene of a yaml scenario and store the results",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}

	mcCmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "tip sag statistics under modulus and payload uncertainty",
		RunE:  runMonteCarlo,
	}
	sceneFlags(mcCmd)
	mcCmd.Flags().Int("trials", 16, "number of trials")
	mcCmd.Flags().Int64("seed", 1, "random seed")
	mcCmd.Flags().Float64("modulus-spread", 0.1, "relative spread of young's modulus")
	mcCmd.Flags().Float64("mass-spread", 0.1, "relative spread of payload mass")

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid search scene parameters toward a metric target",
		RunE:  runTune,
	}
	sceneFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&grid, "grid", nil, "name=v1,v2,... per parameter (repeatable)")
	tuneCmd.Flags().String("metric", "tip_sag", "metric to drive toward the target")
	tuneCmd.Flags().Float64("target", 0, "target metric value")

	presetsCmd := &cobra.Command{
		Use:   "presets [name]",
		Short: "list presets or print one as yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showPresets,
	}

	rootCmd.AddCommand(runCmd, liveCmd, staticCmd, sweepCmd, watchCmd, batchCmd, mcCmd, tuneCmd, listCmd, showCmd, presetsCmd)

	viper.SetEnvPrefix("CABLESIM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func setupLogger() {
	level := slog.LevelWarn
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
