package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/thushan/conduit/internal/app"
	"github.com/thushan/conduit/internal/config"
	"github.com/thushan/conduit/internal/logger"
	"github.com/thushan/conduit/internal/version"
	"github.com/thushan/conduit/pkg/format"
	"github.com/thushan/conduit/pkg/nerdstats"
	"github.com/thushan/conduit/pkg/profiler"
)

func newServeCmd(configPath *string) *cobra.Command {
	var dashboard bool
	var profile bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start conduit's listeners and dialers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if *configPath != "" {
				_ = os.Setenv("CONDUIT_CONFIG_FILE", *configPath)
			}
			return runServe(cmd.Context(), dashboard, profile)
		},
	}
	cmd.Flags().BoolVar(&dashboard, "dashboard", false, "render a live endpoint-state dashboard instead of log lines")
	cmd.Flags().BoolVar(&profile, "profile", false, "expose pprof on localhost:19841")
	return cmd
}

func runServe(ctx context.Context, dashboard, profile bool) error {
	startTime := time.Now()

	if profile {
		profiler.InitialiseProfiler()
	}

	cfg, err := config.Load(nil)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	lcfg := &logger.Config{
		Level:      cfg.Logging.Level,
		LogDir:     "./logs",
		Theme:      cfg.Logging.Theme,
		FileOutput: cfg.Logging.Output == "file",
		PrettyLogs: !dashboard,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
	}
	logInstance, styledLogger, cleanup, err := logger.NewWithTheme(lcfg)
	if err != nil {
		return fmt.Errorf("initialising logger: %w", err)
	}
	defer cleanup()
	slog.SetDefault(logInstance)

	styledLogger.Info("conduit initialising", "version", version.Version, "pid", os.Getpid())

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		styledLogger.Info("shutdown signal received", "signal", sig.String())
		cancel()
	}()

	application, err := app.New(cfg, styledLogger)
	if err != nil {
		return fmt.Errorf("constructing application: %w", err)
	}

	if err := application.Start(runCtx); err != nil {
		return fmt.Errorf("starting application: %w", err)
	}

	if dashboard {
		go func() {
			if err := application.RunDashboard(runCtx); err != nil {
				styledLogger.Error("dashboard exited", "error", err)
			}
		}()
	}

	<-runCtx.Done()

	if err := application.Stop(context.Background()); err != nil {
		styledLogger.Error("error during shutdown", "error", err)
	}

	reportProcessStats(styledLogger, startTime)
	styledLogger.Info("conduit has shutdown")
	return nil
}

func reportProcessStats(log *logger.StyledLogger, startTime time.Time) {
	runtime.GC()
	stats := nerdstats.Snapshot(startTime)

	log.Info("process memory stats",
		"heap_alloc", format.Bytes(stats.HeapAlloc),
		"heap_sys", format.Bytes(stats.HeapSys),
		"heap_inuse", format.Bytes(stats.HeapInuse),
		"total_alloc", format.Bytes(stats.TotalAlloc),
		"memory_pressure", stats.GetMemoryPressure(),
	)

	log.Info("runtime stats",
		"uptime", format.Duration(stats.Uptime),
		"go_version", stats.GoVersion,
		"num_goroutines", stats.NumGoroutines,
		"gomaxprocs", stats.GOMAXPROCS,
	)
}
