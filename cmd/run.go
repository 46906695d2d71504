package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/reply-tracker/internal/logger"
	"github.com/spigell/reply-tracker/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch every configured stream until interrupted",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Duration("interval", 0, "pause between polling cycles, overrides the config")
	runCmd.Flags().Bool("halt-on-storage-error", false, "stop when the tracking document cannot be written")
	runCmd.Flags().String("metrics-addr", "", "listen address of the prometheus endpoint, empty disables it")

	viper.BindPFlag("interval", runCmd.Flags().Lookup("interval"))
	viper.BindPFlag("halt-on-storage-error", runCmd.Flags().Lookup("halt-on-storage-error"))
	viper.BindPFlag("metrics-addr", runCmd.Flags().Lookup("metrics-addr"))
}

// run is the main command for the cli.
func run(_ *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config == nil {
		logger.Fatal("config is required")
	}

	logger.Info("starting the reply-tracker", zap.String("version", buildVersion()))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if len(config.Streams) == 0 {
		logger.Fatal("at least one stream is required under streams")
	}

	classifier, instruction, err := newClassifier(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("building classifier", zap.Error(err))
	}

	var recorder metrics.Recorder = metrics.Nop()
	registry := prometheus.NewRegistry()
	if config.MetricsAddr != "" {
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		recorder = metrics.NewPrometheusRecorder(registry)
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, cfg := range config.Streams {
		s, err := newStream(config, cfg, classifier, instruction, streamOptions{recorder: recorder}, logger)
		if err != nil {
			logger.Fatal("preparing stream", zap.Error(err))
		}
		defer s.Close()

		g.Go(func() error {
			return s.tracker.Run(gctx)
		})
	}

	if config.MetricsAddr != "" {
		serveMetrics(gctx, g, config.MetricsAddr, registry, logger)
	}

	logger.Info("watching streams", zap.Int("count", len(config.Streams)))

	if err := g.Wait(); err != nil {
		logger.Error("tracker halted", zap.Error(err))
		return
	}

	logger.Info("exiting", zap.String("reason", "interrupted"))
}

func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, registry *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(registry))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics endpoint: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})
}
