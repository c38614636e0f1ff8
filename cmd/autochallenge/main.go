// Package main provides the autochallenge CLI: list the
// challenge catalog, run a single level or a sequence from the
// terminal, or serve the monitoring API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"digital.vasic.automation/pkg/automation"
	"digital.vasic.automation/pkg/catalog"
	"digital.vasic.automation/pkg/config"
	"digital.vasic.automation/pkg/logging"
	"digital.vasic.automation/pkg/metrics"
	"digital.vasic.automation/pkg/monitor"
	"digital.vasic.automation/pkg/orchestrator"
	"digital.vasic.automation/pkg/registry"
	"digital.vasic.automation/pkg/report"
)

var (
	configPath  string
	catalogDir  string
	verbose     bool
	monitorAddr string
	reportDir   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "autochallenge",
		Short: "Challenge automation orchestrator",
		Long: "Runs progressive automation challenges, one " +
			"at a time, with pause, resume, and stop " +
			"control and a live monitoring API.",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath,
		"config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&catalogDir,
		"catalog", "",
		"Directory of YAML challenge definitions "+
			"(default: built-in catalog)")
	rootCmd.PersistentFlags().BoolVarP(&verbose,
		"verbose", "v", false, "Verbose logging")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the challenge catalog",
		RunE:  runList,
	}

	runCmd := &cobra.Command{
		Use:   "run [level]",
		Short: "Run a single challenge level",
		Args:  cobra.ExactArgs(1),
		RunE:  runSingle,
	}
	runCmd.Flags().StringVar(&reportDir,
		"report-dir", "",
		"Write JSON and HTML reports to this directory")

	sequenceCmd := &cobra.Command{
		Use:   "sequence [start] [end]",
		Short: "Run a range of challenge levels in order",
		Args:  cobra.ExactArgs(2),
		RunE:  runSequence,
	}
	sequenceCmd.Flags().StringVar(&reportDir,
		"report-dir", "",
		"Write JSON and HTML reports to this directory")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the monitoring and control API",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&monitorAddr,
		"addr", "", "Listen address (default from config)")

	rootCmd.AddCommand(
		listCmd, runCmd, sequenceCmd, serveCmd, remoteCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and builds the registry and
// orchestrator shared by every subcommand.
func setup() (
	*config.Config,
	*orchestrator.Orchestrator,
	*metrics.Collector,
	logging.Logger,
	error,
) {
	config.LoadDotenv("")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if verbose {
		cfg.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, nil, err
	}

	var logger logging.Logger
	logger = logging.NewConsoleLogger(cfg.Verbose)
	if cfg.LogPath != "" {
		jl, err := logging.NewJSONLogger(
			logging.JSONLoggerConfig{
				OutputPath: cfg.LogPath,
			},
		)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		logger = logging.NewMultiLogger(logger, jl)
	}

	reg := registry.New()
	if catalogDir != "" {
		err = registry.LoadCatalogDir(reg, catalogDir)
	} else {
		eng := automation.NewSimulatedEngine(
			automation.WithPreinstalled("git", "python"),
		).Engine()
		err = catalog.Register(reg, eng)
	}
	if err != nil {
		logger.Close()
		return nil, nil, nil, nil, fmt.Errorf(
			"loading catalog: %w", err,
		)
	}

	collector := metrics.NewCollector()
	orch := orchestrator.New(cfg, reg,
		orchestrator.WithLogger(logger),
		orchestrator.WithRecorder(collector),
	)
	return cfg, orch, collector, logger, nil
}

func runList(_ *cobra.Command, _ []string) error {
	_, orch, _, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	for _, snap := range orch.Registry().Snapshots() {
		fmt.Printf("Level %d: %s [%s]\n",
			snap.Level, snap.Name, snap.Status)
		fmt.Printf("  %s\n", snap.Description)
		if len(snap.Prerequisites) > 0 {
			fmt.Printf("  requires: %v\n",
				snap.Prerequisites)
		}
	}
	return nil
}

func runSingle(_ *cobra.Command, args []string) error {
	level, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid level %q", args[0])
	}

	_, orch, _, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	if !orch.StartSingle(level) {
		return fmt.Errorf("could not start level %d", level)
	}
	runErr := waitForRun(orch)
	if err := writeReport(orch, logger); err != nil {
		return err
	}
	return runErr
}

func runSequence(_ *cobra.Command, args []string) error {
	start, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid start level %q", args[0])
	}
	end, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid end level %q", args[1])
	}

	_, orch, _, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	if !orch.StartSequence(start, end) {
		return fmt.Errorf(
			"could not start sequence %d-%d", start, end,
		)
	}
	runErr := waitForRun(orch)
	if err := writeReport(orch, logger); err != nil {
		return err
	}
	return runErr
}

// writeReport renders the post-run summary when a report
// directory was requested.
func writeReport(
	orch *orchestrator.Orchestrator,
	logger logging.Logger,
) error {
	if reportDir == "" {
		return nil
	}
	s := orch.GetStatus()
	summary := report.NewSummary(
		s.RunID, s.OverallProgress, s.Challenges,
	)
	if err := report.WriteFiles(
		reportDir, summary,
	); err != nil {
		return err
	}
	logger.Info("report written",
		logging.StringField("dir", reportDir),
	)
	return nil
}

// waitForRun blocks until the worker settles, stopping the run
// gracefully on the first interrupt.
func waitForRun(orch *orchestrator.Orchestrator) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sigCh:
			orch.Stop()
			return nil
		case <-ticker.C:
			switch orch.State() {
			case orchestrator.StateIdle:
				return nil
			case orchestrator.StateError:
				return fmt.Errorf("run failed; see log")
			}
		}
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, orch, collector, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	addr := cfg.MonitorAddr
	if monitorAddr != "" {
		addr = monitorAddr
	}

	srv := monitor.NewServer(addr, orch, orch.Bus(),
		monitor.WithMetrics(collector),
		monitor.WithLogger(logger),
	)

	ctx, cancel := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT, syscall.SIGTERM,
	)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	orch.Stop()
	shutdownCtx, cancelShutdown := context.WithTimeout(
		context.Background(), 5*time.Second,
	)
	defer cancelShutdown()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("monitor shutdown",
			logging.ErrorField(err),
		)
	}
	return nil
}
