package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/amdpower/internal/config"
	"codeberg.org/mutker/amdpower/internal/errors"
	"codeberg.org/mutker/amdpower/internal/exporter"
	"codeberg.org/mutker/amdpower/internal/logger"
	"codeberg.org/mutker/amdpower/internal/metrics"
	"codeberg.org/mutker/amdpower/internal/msr"
	"codeberg.org/mutker/amdpower/internal/pid"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const powerWindowSize = 5

// powerReader is the part of msr.Sampler the main loop needs
type powerReader interface {
	Read() (*msr.Snapshot, error)
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	return runWith(cfg)
}

func runWith(cfg config.Provider) int {
	level, _ := logger.ParseLevel(cfg.GetLogLevel())
	logger.Init(level, logger.IsService())
	logger.Debug().Msg("Config loaded")

	errFactory := errors.New()

	sampler, err := msr.New(samplerOptions(cfg)...)
	if err != nil {
		logger.ErrorWithCode(errFactory.Wrap(errors.ErrInitApp, err)).Msg("failed to initialize MSR sampler")
		return 1
	}
	defer func() {
		if err := sampler.Close(); err != nil {
			logger.ErrorWithCode(errFactory.Wrap(errors.ErrShutdownMSR, err)).Send()
		}
	}()

	if !cfg.IsMonitorMode() {
		snapshot, err := sampler.Read()
		if err != nil {
			logger.ErrorWithCode(errFactory.Wrap(errors.ErrReadPower, err)).Msg("failed to read power")
			return 1
		}
		printSnapshot(os.Stdout, snapshot)
		return 0
	}

	if err := pid.Write(); err != nil {
		logger.ErrorWithCode(errFactory.Wrap(errors.ErrWritePIDFile, err)).Msg("")
		return 1
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Warn().Err(err).Msg("failed to remove PID file")
		}
	}()

	collector, err := metrics.NewService(metricsConfig(cfg), logger.Get().WithComponent("metrics"))
	if err != nil {
		logger.ErrorWithCode(errFactory.Wrap(errors.ErrInitMetrics, err)).Msg("")
		return 1
	}
	defer func() {
		if err := collector.Close(); err != nil {
			logger.ErrorWithCode(errFactory.Wrap(errors.ErrCloseMetrics, err)).Send()
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	published := exporter.NewCollector()
	g, gctx := errgroup.WithContext(ctx)

	if addr := cfg.GetListenAddress(); addr != "" {
		server, err := exporter.NewServer(addr, published, logger.Get().WithComponent("exporter"))
		if err != nil {
			logger.ErrorWithCode(errFactory.Wrap(errors.ErrInitApp, err)).Msg("failed to set up Prometheus endpoint")
			return 1
		}
		g.Go(func() error {
			return server.Run(gctx)
		})
	}

	logger.Info().
		Int("cores", sampler.NumCores()).
		Int("interval", cfg.GetInterval()).
		Bool("metrics", cfg.IsMetricsEnabled()).
		Str("listen", cfg.GetListenAddress()).
		Msg("Monitor mode activated. Logging CPU power...")

	g.Go(func() error {
		return loop(gctx, sampler, collector, published, sampleInterval(cfg))
	})

	if err := g.Wait(); err != nil {
		logger.ErrorWithCode(errFactory.Wrap(errors.ErrMainLoop, err)).Msg("error in main loop")
		return 1
	}

	logger.Info().Msg("Exiting...")
	return 0
}

func samplerOptions(cfg config.Provider) []msr.Option {
	return []msr.Option{
		msr.WithDevicePath(cfg.GetDevicePath()),
		msr.WithTopologyPath(cfg.GetTopologyPath()),
		msr.WithMaxCPUs(cfg.GetMaxCPUs()),
		msr.WithLogger(logger.Get().WithComponent("msr")),
	}
}

func metricsConfig(cfg config.Provider) metrics.Config {
	return metrics.Config{
		DBPath:         cfg.GetMetricsDBPath(),
		Enabled:        cfg.IsMetricsEnabled(),
		BatchSize:      cfg.GetMetricsBatchSize(),
		BatchTimeout:   cfg.GetMetricsBatchTimeout(),
		RetentionHours: cfg.GetMetricsRetention(),
	}
}

func sampleInterval(cfg config.Provider) time.Duration {
	return time.Duration(cfg.GetInterval()) * time.Second
}

func loop(
	ctx context.Context,
	reader powerReader,
	collector metrics.MetricsCollector,
	published *exporter.Collector,
	interval time.Duration,
) error {
	if interval <= 0 {
		return errors.New().WithData(errors.ErrInvalidInterval, interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	history := newPowerHistory(powerWindowSize)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snapshot, err := reader.Read()
			if err != nil {
				return errors.New().Wrap(errors.ErrReadPower, err)
			}

			published.Update(snapshot)
			average := history.Update(snapshot.TotalPackagePower())
			logSnapshot(snapshot, average)

			if err := collector.Record(ctx, metrics.FromPowerSnapshot(snapshot)); err != nil {
				logger.Warn().Err(err).Msg("failed to record metrics")
			}
		}
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func printSnapshot(w io.Writer, snapshot *msr.Snapshot) {
	fmt.Fprintln(w, "Package power:")
	for i, watts := range snapshot.Packages() {
		fmt.Fprintf(w, "\t#%d: %.2fW\n", i, watts)
	}
	fmt.Fprintln(w, "Core power:")
	for i, watts := range snapshot.Cores() {
		fmt.Fprintf(w, "\t#%d: %.2fW\n", i, watts)
	}
}

func logSnapshot(snapshot *msr.Snapshot, average float64) {
	logger.Info().
		Floats64("package_power", snapshot.Packages()).
		Float64("total_package_power", snapshot.TotalPackagePower()).
		Float64("avg_package_power", average).
		Msg("")

	logger.Debug().
		Floats64("core_power", snapshot.Cores()).
		Time("timestamp", snapshot.Timestamp()).
		Msg("")
}
