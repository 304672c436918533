package main

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"text/tabwriter"
	"time"

	"github.com/klauspost/cpuid/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openfluke/catnet/dataset"
	"github.com/openfluke/catnet/gpu"
	"github.com/openfluke/catnet/nn"
	"github.com/openfluke/catnet/runlog"
)

var (
	gcInput    int
	gcHidden   int
	gcExamples int
	gcStep     float64
	gcTol      float64
	gcSeed     int64

	historyDB    string
	historyLimit int

	infoModel string
)

// gradcheckCmd compares backprop against finite differences
var gradcheckCmd = &cobra.Command{
	Use:   "gradcheck",
	Short: "Check backpropagation against a finite-difference gradient",
	Long: `Builds a small network for every hidden activation, draws a random
problem and compares the analytic gradient with a central finite difference.
The relative difference ‖g - g̃‖ / (‖g‖ + ‖g̃‖) must stay under --tolerance.`,
	RunE: runGradcheck,
}

// historyCmd lists recorded training runs
var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recorded training runs, or show one in detail",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

// infoCmd prints model layout and host details
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the model blueprint and host CPU/GPU details",
	RunE:  runInfo,
}

func init() {
	f := gradcheckCmd.Flags()
	f.IntVar(&gcInput, "input", 5, "input features")
	f.IntVar(&gcHidden, "hidden", 4, "hidden units")
	f.IntVar(&gcExamples, "examples", 20, "examples in the random problem")
	f.Float64Var(&gcStep, "step", 1e-6, "finite-difference step")
	f.Float64Var(&gcTol, "tolerance", 1e-6, "largest accepted relative difference")
	f.Int64Var(&gcSeed, "seed", 1, "random seed")

	historyCmd.Flags().StringVar(&historyDB, "runs", "runs.db", "run history database")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to show (0 = all)")

	infoCmd.Flags().StringVar(&infoModel, "model", "", "model bundle to describe (default: configured layout)")
}

func runGradcheck(cmd *cobra.Command, args []string) error {
	set, err := dataset.Synthetic(gcExamples, gcInput, gcSeed)
	if err != nil {
		return err
	}
	dims := nn.Dims{Input: gcInput, Hidden: gcHidden, Output: 1}
	out := cmd.OutOrStdout()

	failed := 0
	for _, act := range []nn.ActivationType{nn.ActivationReLU, nn.ActivationSigmoid, nn.ActivationTanh, nn.ActivationLeakyReLU} {
		network, err := nn.NewNetwork(dims, act, nn.InitXavier, gcSeed)
		if err != nil {
			return err
		}
		res, err := network.GradientCheck(set.X, set.Y, gcStep)
		if err != nil {
			return fmt.Errorf("%s: %w", act, err)
		}
		status := "ok"
		if res.Difference >= gcTol {
			status = "FAIL"
			failed++
		}
		logger.Debug("gradient check",
			zap.String("activation", act.String()),
			zap.Float64("difference", res.Difference),
			zap.String("worst", res.WorstName),
		)
		fmt.Fprintf(out, "%-11s difference %.3e  worst %s  %s\n", act, res.Difference, res.WorstName, status)
	}
	if failed > 0 {
		return fmt.Errorf("%d activation(s) failed the gradient check", failed)
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := runlog.Open(historyDB)
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		run, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return showRun(out, run)
	}

	runs, err := store.List(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No recorded runs.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tLAYERS\tLR\tITER\tCOST\tTRAIN\tTEST")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d-%d-%d %s\t%g\t%d\t%.4f\t%.2f%%\t%.2f%%\n",
			r.ID[:min(8, len(r.ID))], r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Dims.Input, r.Dims.Hidden, r.Dims.Output, r.HiddenActivation,
			r.LearningRate, r.Iterations, r.FinalCost, 100*r.TrainAccuracy, 100*r.TestAccuracy)
	}
	return tw.Flush()
}

func showRun(w io.Writer, r runlog.Run) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%s\n", r.ID)
	fmt.Fprintf(tw, "created\t%s\n", r.CreatedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(tw, "model\t%s (%s)\n", r.ModelID, r.ModelPath)
	fmt.Fprintf(tw, "layers\t%d -> %d (%s) -> %d\n", r.Dims.Input, r.Dims.Hidden, r.HiddenActivation, r.Dims.Output)
	fmt.Fprintf(tw, "learning rate\t%g\n", r.LearningRate)
	fmt.Fprintf(tw, "iterations\t%d\n", r.Iterations)
	fmt.Fprintf(tw, "final cost\t%.6f\n", r.FinalCost)
	fmt.Fprintf(tw, "train accuracy\t%.2f%%\n", 100*r.TrainAccuracy)
	fmt.Fprintf(tw, "test accuracy\t%.2f%%\n", 100*r.TestAccuracy)
	fmt.Fprintf(tw, "duration\t%s\n", r.Duration)
	for _, c := range r.Costs {
		fmt.Fprintf(tw, "cost after iteration %d\t%.6f\n", c.Iteration, c.Cost)
	}
	return tw.Flush()
}

// hostInfo describes the machine the model runs on.
type hostInfo struct {
	CPU      string      `json:"cpu"`
	Cores    int         `json:"physical_cores"`
	Threads  int         `json:"logical_cores"`
	Features []string    `json:"features"`
	GOARCH   string      `json:"goarch"`
	GPU      *gpu.Report `json:"gpu"` // nil without an adapter
}

func runInfo(cmd *cobra.Command, args []string) error {
	var network *nn.Network
	var err error
	id := "catnet"
	if infoModel != "" {
		network, err = nn.LoadModel(infoModel, "")
		if err != nil {
			return err
		}
		id = infoModel
	} else {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		network, err = cfg.Network()
		if err != nil {
			return err
		}
	}

	host := hostInfo{
		CPU:      cpuid.CPU.BrandName,
		Cores:    cpuid.CPU.PhysicalCores,
		Threads:  cpuid.CPU.LogicalCores,
		Features: cpuid.CPU.FeatureSet(),
		GOARCH:   runtime.GOARCH,
	}
	if rep, err := gpu.Describe(); err == nil {
		host.GPU = rep
	} else {
		logger.Debug("no GPU report", zap.Error(err))
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Model nn.ModelTelemetry `json:"model"`
		Host  hostInfo          `json:"host"`
	}{network.Blueprint(id), host})
}
