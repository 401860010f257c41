package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/fetchforge/packages/core/definition"
	"github.com/abdul-hamid-achik/fetchforge/packages/stress"
)

var (
	benchSession         sessionFlags
	benchArgFlags        []string
	benchWeightFlags     []string
	benchDurationFlag    time.Duration
	benchRateFlag        float64
	benchConcurrencyFlag int
	benchRampUpFlag      time.Duration
	benchThresholdFlag   string
	benchNoProgressFlag  bool
	benchJSONFlag        bool
)

var benchCmd = &cobra.Command{
	Use:   "bench <file> [request...]",
	Short: "Send requests at a fixed rate and report latency",
	Long: `Dispatch requests from a definition file at a target rate for a fixed
duration, then report throughput, latency percentiles and status codes.

Without request names every request in the file is used. Requests are picked
at random in proportion to their --weight (default 1).

Thresholds fail the run (exit code 1) when not met:
  p50, p95, p99, max   latency, e.g. p95<200ms
  errors               error rate, e.g. errors<0.5%
  rps                  throughput, e.g. rps>100

Examples:
  fetchforge bench api.yaml getUser --arg id=1 -d 1m -r 50
  fetchforge bench api.yaml listUsers getUser --weight listUsers=3 --threshold "p95<200ms,errors<1%"
  fetchforge bench api.yaml --ramp-up 10s --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: benchCommand,
}

func init() {
	benchSession.register(benchCmd.Flags())
	benchCmd.Flags().StringArrayVarP(&benchArgFlags, "arg", "a", nil, "Request argument as key=value, repeatable")
	benchCmd.Flags().StringArrayVar(&benchWeightFlags, "weight", nil, "Relative share of a request as name=n, repeatable")
	benchCmd.Flags().DurationVarP(&benchDurationFlag, "duration", "d", getEnvDuration("FETCHFORGE_BENCH_DURATION", 30*time.Second), "Run duration, e.g. 30s, 5m (env: FETCHFORGE_BENCH_DURATION)")
	benchCmd.Flags().Float64VarP(&benchRateFlag, "rate", "r", getEnvFloat("FETCHFORGE_BENCH_RATE", 10), "Target requests per second (env: FETCHFORGE_BENCH_RATE)")
	benchCmd.Flags().IntVarP(&benchConcurrencyFlag, "concurrency", "c", getEnvInt("FETCHFORGE_BENCH_CONCURRENCY", 100), "Maximum requests in flight (env: FETCHFORGE_BENCH_CONCURRENCY)")
	benchCmd.Flags().DurationVar(&benchRampUpFlag, "ramp-up", getEnvDuration("FETCHFORGE_BENCH_RAMP_UP", 0), "Grow the rate from zero over this period (env: FETCHFORGE_BENCH_RAMP_UP)")
	benchCmd.Flags().StringVar(&benchThresholdFlag, "threshold", getEnvString("FETCHFORGE_BENCH_THRESHOLD", ""), "Pass/fail thresholds, e.g. \"p95<200ms,errors<0.1%\" (env: FETCHFORGE_BENCH_THRESHOLD)")
	benchCmd.Flags().BoolVar(&benchNoProgressFlag, "no-progress", getEnvBool("FETCHFORGE_NO_PROGRESS", false), "Disable the live progress line (env: FETCHFORGE_NO_PROGRESS)")
	benchCmd.Flags().BoolVar(&benchJSONFlag, "json", false, "Print the summary as JSON")
}

func benchCommand(cmd *cobra.Command, args []string) error {
	file, names := args[0], args[1:]

	reqArgs, err := parseAssignments(benchArgFlags)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	weights, err := parseWeights(benchWeightFlags)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	cfg, err := buildBenchConfig()
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	s, err := benchSession.open(file, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if len(names) == 0 {
		names = s.def.RequestNames()
	}

	// The JSON document is the only thing written to stdout in JSON mode.
	var live io.Writer = cmd.OutOrStdout()
	if benchJSONFlag {
		live = io.Discard
	}
	reporter := stress.NewReporter(
		stress.WithWriter(live),
		stress.WithNoColor(s.noColor),
		stress.WithNoProgress(benchNoProgressFlag),
		stress.WithVerbose(benchSession.verbose > 0),
	)

	runner := stress.NewRunner(cfg, s.client,
		stress.WithReporter(reporter),
		stress.WithLogger(s.log),
		stress.WithLabel(filepath.Base(file), version),
	)
	for _, name := range names {
		b, err := s.request(name)
		if err != nil {
			return withExitCode(ExitUsageError, err)
		}
		runner.Add(stress.BuilderTarget(name, weights[name], b, definition.Args(reqArgs)))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := runner.Run(ctx)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	if benchJSONFlag {
		if err := stress.NewReporter(stress.WithWriter(cmd.OutOrStdout())).JSONSummary(result); err != nil {
			return err
		}
	} else {
		runner.Report(result)
	}

	if !result.Passed {
		return withExitCode(ExitTestFailure, errThresholdsFailed)
	}
	return nil
}

func buildBenchConfig() (*stress.Config, error) {
	cfg := stress.DefaultConfig()
	cfg.Duration = benchDurationFlag
	cfg.Rate = benchRateFlag
	cfg.MaxConcurrency = benchConcurrencyFlag
	cfg.RampUp = benchRampUpFlag

	if benchThresholdFlag != "" {
		t, err := stress.ParseThresholds(benchThresholdFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid thresholds: %w", err)
		}
		cfg.Thresholds = t
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseWeights parses repeated name=n flags.
func parseWeights(values []string) (map[string]int, error) {
	pairs, err := parseAssignments(values)
	if err != nil {
		return nil, err
	}
	weights := make(map[string]int, len(pairs))
	for name, raw := range pairs {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid weight %q for %s: expected a positive integer", raw, name)
		}
		weights[name] = n
	}
	return weights, nil
}
