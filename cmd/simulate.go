package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"loan-risk/domain"
	"loan-risk/report"
	"loan-risk/simulation"
)

var SimulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "run a loss simulation over a portfolio file and print the summary",
	Args:  cobra.NoArgs,
	RunE:  runSimulate,
}

func init() {
	SimulateCmd.Flags().String("portfolio", "loans_data.xlsx", "portfolio file (.xlsx or .csv)")
	SimulateCmd.Flags().Int("simulations", 1000, "number of Monte Carlo trials")
	SimulateCmd.Flags().Uint64("seed", 0, "random seed, random when not given")
	SimulateCmd.Flags().Int("workers", 1, "worker goroutines; more than 1 uses per-trial random streams")
	SimulateCmd.Flags().String("format", "table", "output format: table or json")
	SimulateCmd.Flags().Bool("charts", false, "include the loss histogram")
	SimulateCmd.Flags().Bool("explain", false, "add a narrative explanation of the results")

	for key, flag := range map[string]string{
		"portfolio.file":     "portfolio",
		"simulation.count":   "simulations",
		"simulation.seed":    "seed",
		"simulation.workers": "workers",
	} {
		if err := viper.BindPFlag(key, SimulateCmd.Flags().Lookup(flag)); err != nil {
			log.WithError(err).Errorf("failed to bind flag %s", flag)
		}
	}

	RootCmd.AddCommand(SimulateCmd)
}

type simulateOutput struct {
	domain.SimulationRun
	ExpectedShortfall report.Tail    `json:"expected_shortfall"`
	Charts            *report.Charts `json:"charts,omitempty"`
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "table" && format != "json" {
		return errors.Errorf("--format must be table or json, got %q", format)
	}
	withCharts, _ := cmd.Flags().GetBool("charts")
	explain, _ := cmd.Flags().GetBool("explain")

	ctx := cmd.Context()
	deps, err := buildDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	count := cfg.Simulation.Count
	run, err := deps.service.RunSimulation(ctx, domain.SimulationRequest{
		NumSimulations: &count,
		Seed:           cfg.Simulation.Seed,
		Workers:        cfg.Simulation.Workers,
		Explain:        explain,
	})
	if err != nil {
		return describeError(err)
	}

	tail, err := expectedShortfall(run.Summary.Losses)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		return writeJSON(out, run, tail, withCharts)
	}

	report.WriteTable(out, run, &tail)
	if withCharts {
		fmt.Fprintln(out)
		report.WriteHistogram(out, report.Histogram(run.Summary.Losses, report.DefaultBins))
	}
	if run.Explanation != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, run.Explanation)
	}
	return nil
}

func expectedShortfall(losses domain.LossSample) (report.Tail, error) {
	es95, err := simulation.ExpectedShortfall(losses, simulation.Level95)
	if err != nil {
		return report.Tail{}, err
	}
	es99, err := simulation.ExpectedShortfall(losses, simulation.Level99)
	if err != nil {
		return report.Tail{}, err
	}
	return report.Tail{ES95: es95, ES99: es99}, nil
}

func writeJSON(w io.Writer, run domain.SimulationRun, tail report.Tail, withCharts bool) error {
	output := simulateOutput{SimulationRun: run, ExpectedShortfall: tail}
	if withCharts {
		charts := report.NewCharts(run.Summary.Losses)
		output.Charts = &charts
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

// describeError points the user at the flag behind a failure.
func describeError(err error) error {
	switch {
	case errors.Is(err, domain.ErrDataUnavailable):
		return errors.WithMessage(err, "cannot read the portfolio, check --portfolio")
	case errors.Is(err, domain.ErrInvalidInput):
		return errors.WithMessage(err, "invalid simulation input")
	}
	return err
}
