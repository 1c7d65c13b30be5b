package main

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"nthprime/internal/config"
	"nthprime/internal/logging"
	"nthprime/internal/metrics"
	"nthprime/internal/server"
	"nthprime/internal/service"
	"nthprime/internal/tui"
)

// --- Global flag values ---
var (
	cfgPath   string
	logLevel  string
	logFormat string
	traceOut  bool
	pretty    string
	serveAddr string

	// Assembled in PersistentPreRunE.
	appCfg   *config.AppConfig
	logger   *logging.Logger
	registry *prometheus.Registry
	svc      *service.PrimeServiceImpl
	tp       *sdktrace.TracerProvider
	stats    metrics.Basic

	rootCmd = &cobra.Command{
		Use:   "nthprime [n]",
		Short: "Compute the n-th prime with a Miller-Rabin counting search",
		Long: `nthprime walks the integers upward from 2, classifies each with a
Miller-Rabin detector and returns the candidate at which the prime count
reaches n. Rosser's bound acts as a circuit breaker for misbehaving detectors.`,
		Args:              cobra.MaximumNArgs(1),
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			st := stats.Snapshot()
			logger.DebugContext(cmd.Context(), "run summary",
				"searches", st.SearchCount,
				"candidates", st.Candidates,
				"avg_search", st.AvgSearchTime,
				"tests", st.TestCount,
			)
			if tp != nil {
				return tp.Shutdown(cmd.Context())
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runNth(cmd, args)
		},
	}

	nthCmd = &cobra.Command{
		Use:   "nth N",
		Short: "Print the N-th prime (1-indexed)",
		Args:  cobra.ExactArgs(1),
		RunE:  runNth,
	}

	batchCmd = &cobra.Command{
		Use:   "batch N...",
		Short: "Compute several n-th primes concurrently",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runBatch,
	}

	isPrimeCmd = &cobra.Command{
		Use:     "isprime K",
		Aliases: []string{"is"},
		Short:   "Run the primality detector on K",
		Args:    cobra.ExactArgs(1),
		RunE:    runIsPrime,
	}

	boundCmd = &cobra.Command{
		Use:   "bound N",
		Short: "Print the location estimate of the N-th prime",
		Args:  cobra.ExactArgs(1),
		RunE:  runBound,
	}

	tuiCmd = &cobra.Command{
		Use:   "tui",
		Short: "Start the interactive terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := tea.NewProgram(tui.New(svc), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and Prometheus metrics",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "Path to YAML config file (default ./config.yaml or ~/.config/nthprime/config.yaml)")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&logFormat, "log-format", "", "Log format: text or json")
	pf.BoolVar(&traceOut, "trace", false, "Print OpenTelemetry spans to stderr")
	pf.StringVar(&pretty, "pretty", "auto", "Group digits in output: auto, always or never")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")

	rootCmd.AddCommand(nthCmd, batchCmd, isPrimeCmd, boundCmd, tuiCmd, serveCmd)
}

func setup(cmd *cobra.Command, _ []string) error {
	var err error
	if cfgPath == "" {
		appCfg, _, err = config.LoadDefault()
	} else {
		appCfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		appCfg.Log.Level = logLevel
	}
	if logFormat != "" {
		appCfg.Log.Format = logFormat
	}

	level, err := logging.ParseLevel(appCfg.Log.Level)
	if err != nil {
		return err
	}
	logger, err = logging.NewWriter(os.Stderr, appCfg.Log.Format, level)
	if err != nil {
		return err
	}

	if traceOut {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("trace exporter: %w", err)
		}
		tp = sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
		otel.SetTracerProvider(tp)
	}

	policy, err := appCfg.Detector.Policy()
	if err != nil {
		return err
	}
	registry = prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.Multi{metrics.NewPrometheus(registry), &stats}

	svc, err = service.NewPrimeService(policy, service.Settings{
		SafetyMultiplier: appCfg.Search.SafetyMultiplier,
		ProgressInterval: appCfg.Search.ProgressInterval,
		Parallelism:      appCfg.Batch.Parallelism,
	}, logger, collector)
	return err
}

func parseArg(name, raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.ReplaceAll(raw, "_", ""), 10)
	if !ok {
		return nil, fmt.Errorf("%s=%q is not an integer", name, raw)
	}
	return v, nil
}

func runNth(cmd *cobra.Command, args []string) error {
	n, err := parseArg("n", args[0])
	if err != nil {
		return err
	}
	p, err := svc.NthPrime(cmd.Context(), n)
	if err != nil {
		return err
	}
	out := newPrinter(cmd.OutOrStdout(), pretty)
	out.value(p)
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	ns := make([]*big.Int, len(args))
	for i, a := range args {
		n, err := parseArg("n", a)
		if err != nil {
			return err
		}
		ns[i] = n
	}
	res, err := svc.Batch(cmd.Context(), ns)
	if err != nil {
		return err
	}
	out := newPrinter(cmd.OutOrStdout(), pretty)
	for _, r := range res {
		out.pair(r.N, r.Prime)
	}
	return nil
}

func runIsPrime(cmd *cobra.Command, args []string) error {
	k, err := parseArg("k", args[0])
	if err != nil {
		return err
	}
	c, err := svc.IsPrime(cmd.Context(), k)
	if err != nil {
		return err
	}
	newPrinter(cmd.OutOrStdout(), pretty).verdict(k, c.Prime, c.Exact)
	return nil
}

func runBound(cmd *cobra.Command, args []string) error {
	n, err := parseArg("n", args[0])
	if err != nil {
		return err
	}
	w, err := svc.Bounds(n)
	if err != nil {
		return err
	}
	out := newPrinter(cmd.OutOrStdout(), pretty)
	out.labeled("lower", w.Lower)
	out.labeled("upper", w.Upper)
	out.labeled("rosser", w.Rosser)
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	addr := appCfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	srv := server.New(svc, server.Config{
		MaxN:           appCfg.Server.MaxNValue(),
		RequestTimeout: time.Duration(appCfg.Server.RequestTimeoutSecs) * time.Second,
		RateLimit:      appCfg.Server.RateLimit,
		Burst:          appCfg.Server.Burst,
		Gatherer:       registry,
	}, logger)
	err := srv.Run(cmd.Context(), addr)
	if errors.Is(err, cmd.Context().Err()) {
		return nil
	}
	return err
}
