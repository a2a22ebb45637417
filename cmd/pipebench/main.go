// Command pipebench measures pipeline throughput for CPU-bound, I/O-bound
// and mixed workloads across stage kinds and concurrency settings.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vnykmshr/pipex/pkg/config"
	"github.com/vnykmshr/pipex/pkg/logging"
	"github.com/vnykmshr/pipex/pkg/scheduling/pipeline"
	"github.com/vnykmshr/pipex/pkg/strategy"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// options are the flags shared by every subcommand.
type options struct {
	configPath  string
	items       int
	metricsAddr string
}

// env is built once per invocation from options and the loaded config.
type env struct {
	exec   *pipeline.Executor
	logger zerolog.Logger
	out    io.Writer
	items  int

	closers []func() error
}

func (e *env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	return errors.Join(errs...)
}

func rootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "pipebench",
		Short: "Benchmark pipex stage kinds",
		Long: `pipebench runs synthetic workloads through pipex pipelines and reports
wall time and throughput for each stage kind and concurrency setting.

Configuration is read from --config (YAML) and PIPEX_* environment variables.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().IntVar(&opts.items, "items", 100, "number of input items")
	root.PersistentFlags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running (e.g. :9090)")

	root.AddCommand(cpuCmd(opts))
	root.AddCommand(ioCmd(opts))
	root.AddCommand(mixedCmd(opts))
	return root
}

func setup(cmd *cobra.Command, opts *options) (*env, error) {
	if opts.items <= 0 {
		return nil, fmt.Errorf("--items must be positive, got %d", opts.items)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	logger = logging.Component(logger, "pipebench")

	e := &env{logger: logger, out: cmd.OutOrStdout(), items: opts.items}

	sink, closeSink, err := cfg.Sink(logger)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, closeSink)

	m := cfg.MetricsRegistry(prometheus.DefaultRegisterer)
	registry := strategy.NewRegistryWithConfig(strategy.Config{Sink: sink, Logger: &logger, Metrics: m})

	e.exec, err = cfg.Executor(registry, &logger, m)
	if err != nil {
		_ = e.Close()
		return nil, err
	}

	if opts.metricsAddr != "" && m != nil {
		srv := &http.Server{
			Addr:              opts.metricsAddr,
			Handler:           promhttp.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Str("addr", opts.metricsAddr).Msg("metrics server failed")
			}
		}()
		logger.Info().Str("addr", opts.metricsAddr).Msg("serving metrics")
		e.closers = append(e.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		})
	}
	return e, nil
}

func cpuCmd(opts *options) *cobra.Command {
	var workers []int

	cmd := &cobra.Command{
		Use:   "cpu",
		Short: "CPU-bound work: sync baseline against parallel pools",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer e.Close()

			cases := []benchCase{{
				label:  "sync",
				stages: []pipeline.Stage{pipeline.Map("cpu", heavyCPU)},
			}}
			for _, w := range workers {
				cases = append(cases, benchCase{
					label:       "parallel",
					concurrency: w,
					stages:      []pipeline.Stage{pipeline.Map("cpu", heavyCPU).Parallel(w)},
				})
			}
			return e.runCases(cmd.Context(), "cpu", cases)
		},
	}

	cmd.Flags().IntSliceVar(&workers, "workers", []int{2, 4, 8}, "worker counts to compare")
	return cmd
}

func ioCmd(opts *options) *cobra.Command {
	var windows []int

	cmd := &cobra.Command{
		Use:   "io",
		Short: "I/O-bound work: unbounded fan-out against windowed streams",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer e.Close()

			fetch := pipeline.Try("io", slowIO).WithStrategyName(strategy.NameLogAndIgnore)
			cases := []benchCase{{
				label:  "async",
				stages: []pipeline.Stage{fetch.Async()},
			}}
			for _, w := range windows {
				cases = append(cases, benchCase{
					label:       "windowed",
					concurrency: w,
					stages:      []pipeline.Stage{fetch.Windowed(w)},
				})
			}
			return e.runCases(cmd.Context(), "io", cases)
		},
	}

	cmd.Flags().IntSliceVar(&windows, "windows", []int{1, 5, 10, 20}, "window sizes to compare")
	return cmd
}

func mixedCmd(opts *options) *cobra.Command {
	var workers, window int

	cmd := &cobra.Command{
		Use:   "mixed",
		Short: "Three-stage pipeline mixing I/O, CPU and light async work",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer e.Close()

			stages := []pipeline.Stage{
				pipeline.Try("fetch", mixedWork).Windowed(window).WithStrategyName(strategy.NameLogAndIgnore),
				pipeline.Map("crunch", heavyCPU).Parallel(workers),
				pipeline.Map("light", lightAsync).Async(),
			}
			return e.runCases(cmd.Context(), "mixed", []benchCase{{
				label:       "pipeline",
				concurrency: window,
				stages:      stages,
			}})
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "workers for the CPU stage (0 = number of CPUs)")
	cmd.Flags().IntVar(&window, "window", pipeline.DefaultWindow, "window for the I/O stage")
	return cmd
}
