package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vacstack/outgas-engine/internal/api"
	"github.com/vacstack/outgas-engine/internal/cache"
	"github.com/vacstack/outgas-engine/internal/config"
	"github.com/vacstack/outgas-engine/internal/convert"
	"github.com/vacstack/outgas-engine/internal/engine"
	"github.com/vacstack/outgas-engine/internal/fit"
	"github.com/vacstack/outgas-engine/internal/gauge"
	"github.com/vacstack/outgas-engine/internal/metrics"
	"github.com/vacstack/outgas-engine/internal/models"
	"github.com/vacstack/outgas-engine/internal/repo"
	"github.com/vacstack/outgas-engine/internal/report"
	"github.com/vacstack/outgas-engine/internal/segment"
	"github.com/vacstack/outgas-engine/internal/utils"
)

func main() {
	var (
		configPath string
		csvPath    string
		outPath    string
	)
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&csvPath, "csv", "", "Analyse a recorded pressure log instead of serving")
	flag.StringVar(&outPath, "out", "", "Result CSV path for -csv mode (default stdout)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)

	pipelineCfg := engine.Config{
		Segment: segment.Config{
			GapThreshold:  cfg.Pipeline.GapThreshold,
			DropThreshold: cfg.Pipeline.DropThreshold,
			MinSamples:    cfg.Pipeline.MinSamples,
			MinDuration:   cfg.Pipeline.MinDuration,
		},
		Fit: fit.Config{
			Tolerance:         cfg.Pipeline.Tolerance,
			MinInlierFraction: cfg.Pipeline.MinInlierFraction,
			MaxIterations:     cfg.Pipeline.MaxIterations,
		},
		Geometry: convert.Geometry{
			Volume:      cfg.Geometry.Volume,
			Area:        cfg.Geometry.Area,
			VolumeSigma: cfg.Geometry.VolumeSigma,
			AreaSigma:   cfg.Geometry.AreaSigma,
		},
		StartPressure: cfg.Pipeline.StartPressure,
		FitWorkers:    cfg.Pipeline.FitWorkers,
	}
	errorModel := gauge.ErrorModel(cfg.Gauge.ErrorModel)

	if csvPath != "" {
		runOffline(logger, cfg, pipelineCfg, errorModel, csvPath, outPath)
		return
	}

	logger.Info("starting outgas-engine", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = cache.NoopProvider{}
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("valkey cache unavailable", slog.Any("error", err))
		} else {
			cacheProvider = provider
			defer provider.Close()
		}
	}

	source := repo.NewGaugeLogClient(
		cfg.Source.BaseURL,
		cfg.Source.ReadingsPath,
		cfg.Source.Timeout,
		cacheProvider,
		cfg.Cache.ReadingsTTL,
		errorModel,
		cfg.Gauge.ConstantSigma,
	)

	pipeline := engine.NewPipeline(logger, source, pipelineCfg)
	handler := api.NewHandler(logger, pipeline, cfg.Source.SensorID)

	server, err := api.NewServer(cfg.Server, handler)
	if err != nil {
		logger.Error("failed to create API server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("API server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	logger.Info("outgas-engine stopped")
}

// runOffline analyses a recorded pressure log once and writes the result CSV.
func runOffline(logger *slog.Logger, cfg *config.Config, pipelineCfg engine.Config, model gauge.ErrorModel, csvPath, outPath string) {
	source := repo.NewCSVFileSource(csvPath, model, cfg.Gauge.ConstantSigma)
	pipeline := engine.NewPipeline(logger, source, pipelineCfg)

	result, err := pipeline.Run(context.Background(), engine.Request{
		SensorID: cfg.Source.SensorID,
		Window:   models.TimeRange{},
	})
	if err != nil {
		if errors.Is(err, engine.ErrDataUnavailable) {
			logger.Warn("no usable data in pressure log", slog.String("path", csvPath))
		} else {
			logger.Error("pipeline run failed", slog.Any("error", err))
			os.Exit(1)
		}
	}

	for _, r := range result.Results {
		logger.Info("outgassing rate",
			slog.Time("start", r.Window.Start),
			slog.Float64("rate_pa_m3_per_s_m2", r.Rate),
			slog.Float64("rate_per_hour", utils.PerHour(r.Rate)),
			slog.Float64("uncertainty", r.RateUncertainty),
			slog.Int("samples", r.SampleCount))
	}
	for _, rej := range result.Diagnostics.Rejections {
		logger.Warn("interval rejected",
			slog.Time("start", rej.Window.Start),
			slog.String("reason", string(rej.Reason)))
	}

	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			logger.Error("create result file", slog.Any("error", err))
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	if err := report.WriteCSV(out, result.Results); err != nil {
		logger.Error("write result CSV", slog.Any("error", err))
		os.Exit(1)
	}
}
