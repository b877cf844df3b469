// Command cascade drives the collision/conjunction Driver: run a
// scenario headlessly, single-step it for inspection, benchmark chunk
// throughput, plot minimum pairwise distance over a run, or (with no
// subcommand) launch the interactive live monitor. Grounded on the
// teacher's cmd/dynsim/main.go cobra root command shape, generalized
// from a physics/control simulation lab's run/list/plot/bench/live/gui
// command set to this module's run/step/bench/plot/monitor set.
package main

import (
	"fmt"
	"math"
	"os"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/cascade/internal/config"
	"github.com/san-kum/cascade/internal/driver"
	"github.com/san-kum/cascade/internal/tui"
)

var (
	configFile string
	presetName string
	steps      int
	workers    int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cascade",
		Short: "collision and conjunction detection engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, label, err := loadConfig("free", "head_on_collision")
			if err != nil {
				return err
			}
			d, err := cfg.NewDriver()
			if err != nil {
				return err
			}
			return tui.Run(d, label, cfg.Steps)
		},
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "run config file (yaml)")
	rootCmd.PersistentFlags().StringVar(&presetName, "preset", "", "named preset, \"model/scenario\"")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "run a scenario headlessly and report the outcome of every superstep",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScenario,
	}
	runCmd.Flags().IntVar(&steps, "steps", 0, "number of supersteps to run (0 = use config default)")

	stepCmd := &cobra.Command{
		Use:   "step [model]",
		Short: "run a single superstep and print its outcome",
		Args:  cobra.MaximumNArgs(1),
		RunE:  stepOnce,
	}

	benchCmd := &cobra.Command{
		Use:   "bench [model]",
		Short: "benchmark superstep throughput across worker counts",
		Args:  cobra.MaximumNArgs(1),
		RunE:  benchScenario,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [model]",
		Short: "run a scenario and plot minimum pairwise distance per superstep",
		Args:  cobra.MaximumNArgs(1),
		RunE:  plotScenario,
	}
	plotCmd.Flags().IntVar(&steps, "steps", 0, "number of supersteps to run (0 = use config default)")

	monitorCmd := &cobra.Command{
		Use:   "monitor [model]",
		Short: "run a scenario in the interactive live monitor",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runMonitor,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names := config.ListPresets(args[0])
			if len(names) == 0 {
				fmt.Printf("no presets for model: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, n := range names {
				fmt.Printf("  %s\n", n)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "worker count override (0 = use config default)")

	rootCmd.AddCommand(runCmd, stepCmd, benchCmd, plotCmd, monitorCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves --config (highest priority), then --preset, then
// the given fallback model/scenario preset, applying --workers on top.
func loadConfig(fallbackModel, fallbackScenario string) (*config.Config, string, error) {
	var cfg *config.Config
	var label string

	switch {
	case configFile != "":
		c, err := config.Load(configFile)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config: %w", err)
		}
		cfg, label = c, configFile
	case presetName != "":
		model, scenario, err := splitPreset(presetName)
		if err != nil {
			return nil, "", err
		}
		c := config.GetPreset(model, scenario)
		if c == nil {
			return nil, "", fmt.Errorf("unknown preset %q (available for %s: %v)", presetName, model, config.ListPresets(model))
		}
		cfg, label = c, presetName
	default:
		c := config.GetPreset(fallbackModel, fallbackScenario)
		if c == nil {
			return nil, "", fmt.Errorf("missing built-in default preset %s/%s", fallbackModel, fallbackScenario)
		}
		cfg, label = c, fallbackModel+"/"+fallbackScenario
	}

	if workers > 0 {
		cfg.Workers = workers
	}
	if cfg.Steps <= 0 {
		cfg.Steps = config.DefaultSteps
	}
	return cfg, label, nil
}

func splitPreset(spec string) (model, scenario string, err error) {
	for i := 0; i < len(spec); i++ {
		if spec[i] == '/' {
			return spec[:i], spec[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("preset must be \"model/scenario\", got %q", spec)
}

func modelOrDefault(args []string) (string, string) {
	if len(args) > 0 {
		return args[0], ""
	}
	return "free", "head_on_collision"
}

func runScenario(cmd *cobra.Command, args []string) error {
	fallbackModel, fallbackScenario := modelOrDefault(args)
	cfg, label, err := loadConfig(fallbackModel, fallbackScenario)
	if err != nil {
		return err
	}
	if steps > 0 {
		cfg.Steps = steps
	}

	d, err := cfg.NewDriver()
	if err != nil {
		return err
	}

	fmt.Printf("running %s (%d particles, %d supersteps)...\n", label, d.NumParticles(), cfg.Steps)
	start := time.Now()

	nColl, nReentry, nExit, nErr := 0, 0, 0, 0
	for i := 0; i < cfg.Steps; i++ {
		out, err := d.Step()
		if err != nil {
			return fmt.Errorf("superstep %d: %w", i, err)
		}
		switch out.Kind {
		case driver.OutcomeCollision:
			nColl++
			fmt.Printf("  [%d] t=%.6f collision (%d, %d)\n", i, out.Time, out.I, out.J)
		case driver.OutcomeReentry:
			nReentry++
			fmt.Printf("  [%d] t=%.6f reentry particle %d\n", i, out.Time, out.I)
		case driver.OutcomeExit:
			nExit++
			fmt.Printf("  [%d] t=%.6f exit particle %d\n", i, out.Time, out.I)
		case driver.OutcomeNonFiniteState:
			nErr++
			fmt.Printf("  [%d] t=%.6f non-finite-state particle %d\n", i, out.Time, out.I)
		}
	}

	elapsed := time.Since(start)
	conj := d.Conjunctions()

	fmt.Printf("\ncompleted in %v\n", elapsed)
	fmt.Printf("final time: %.6f\n", d.Time().Float64())
	fmt.Printf("collisions=%d reentries=%d exits=%d nf_state=%d conjunctions=%d\n",
		nColl, nReentry, nExit, nErr, len(conj))
	for _, c := range conj {
		fmt.Printf("  conjunction t=%.6f (%d, %d) dist_min=%.6f\n", c.Time.Float64(), c.I, c.J, c.DistMin)
	}
	return nil
}

func stepOnce(cmd *cobra.Command, args []string) error {
	fallbackModel, fallbackScenario := modelOrDefault(args)
	cfg, label, err := loadConfig(fallbackModel, fallbackScenario)
	if err != nil {
		return err
	}
	d, err := cfg.NewDriver()
	if err != nil {
		return err
	}
	out, err := d.Step()
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s at t=%.6f", label, out.Kind, out.Time)
	if out.Kind == driver.OutcomeCollision {
		fmt.Printf(" particles (%d, %d)", out.I, out.J)
	} else if out.I >= 0 {
		fmt.Printf(" particle %d", out.I)
	}
	fmt.Println()
	return nil
}

func benchScenario(cmd *cobra.Command, args []string) error {
	fallbackModel, fallbackScenario := modelOrDefault(args)
	baseCfg, label, err := loadConfig(fallbackModel, fallbackScenario)
	if err != nil {
		return err
	}

	workerCounts := []int{1, 2, 4, 8}
	const benchSteps = 50

	fmt.Printf("benchmarking %s (%d supersteps per run)\n\n", label, benchSteps)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WORKERS\tSTEPS\tTIME\tSTEPS/SEC")

	for _, wc := range workerCounts {
		cfg := *baseCfg
		cfg.Workers = wc

		d, err := cfg.NewDriver()
		if err != nil {
			return err
		}

		start := time.Now()
		for i := 0; i < benchSteps; i++ {
			if _, err := d.Step(); err != nil {
				return err
			}
		}
		elapsed := time.Since(start)
		stepsPerSec := float64(benchSteps) / elapsed.Seconds()

		fmt.Fprintf(w, "%d\t%d\t%v\t%.1f\n", wc, benchSteps, elapsed, stepsPerSec)
	}

	return w.Flush()
}

func plotScenario(cmd *cobra.Command, args []string) error {
	fallbackModel, fallbackScenario := modelOrDefault(args)
	cfg, label, err := loadConfig(fallbackModel, fallbackScenario)
	if err != nil {
		return err
	}
	if steps > 0 {
		cfg.Steps = steps
	}

	d, err := cfg.NewDriver()
	if err != nil {
		return err
	}

	minDist := make([]float64, 0, cfg.Steps)
	for i := 0; i < cfg.Steps; i++ {
		if _, err := d.Step(); err != nil {
			return err
		}
		minDist = append(minDist, minPairwiseDistance(d.State()))
	}

	graph := asciigraph.Plot(minDist,
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("%s: minimum pairwise distance", label)),
	)
	fmt.Println(graph)
	return nil
}

// minPairwiseDistance computes the smallest center-to-center distance
// between any two particles in a flat (x,y,z,vx,vy,vz,r) state buffer;
// +Inf if fewer than two particles remain.
func minPairwiseDistance(state []float64) float64 {
	n := len(state) / 7
	if n < 2 {
		return math.Inf(1)
	}
	best := math.Inf(1)
	for i := 0; i < n; i++ {
		xi, yi, zi := state[7*i], state[7*i+1], state[7*i+2]
		for j := i + 1; j < n; j++ {
			xj, yj, zj := state[7*j], state[7*j+1], state[7*j+2]
			dx, dy, dz := xj-xi, yj-yi, zj-zi
			d := math.Sqrt(dx*dx + dy*dy + dz*dz)
			if d < best {
				best = d
			}
		}
	}
	return best
}

func runMonitor(cmd *cobra.Command, args []string) error {
	fallbackModel, fallbackScenario := modelOrDefault(args)
	cfg, label, err := loadConfig(fallbackModel, fallbackScenario)
	if err != nil {
		return err
	}
	d, err := cfg.NewDriver()
	if err != nil {
		return err
	}
	return tui.Run(d, label, cfg.Steps)
}
