package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TheusN/torrentflix-sub000/internal/application/auth"
	"github.com/TheusN/torrentflix-sub000/internal/application/availability"
	"github.com/TheusN/torrentflix-sub000/internal/application/torrent"
	"github.com/TheusN/torrentflix-sub000/internal/config"
	"github.com/TheusN/torrentflix-sub000/internal/infrastructure/arr"
	"github.com/TheusN/torrentflix-sub000/internal/infrastructure/filesystem"
	"github.com/TheusN/torrentflix-sub000/internal/infrastructure/jackett"
	"github.com/TheusN/torrentflix-sub000/internal/infrastructure/qbittorrent"
	"github.com/TheusN/torrentflix-sub000/internal/metrics"
	"github.com/TheusN/torrentflix-sub000/internal/telemetry"
	httptransport "github.com/TheusN/torrentflix-sub000/internal/transport/http"
)

const serviceName = "streaming-gateway"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(registry)

	shutdownTracer, err := telemetry.Init(context.Background(), serviceName, cfg.OTELEndpoint, cfg.OTELSampleRate)
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", serviceName),
		slog.String("httpAddr", cfg.ServerAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("qbitURL", cfg.QBitURL),
		slog.String("downloadsDir", cfg.DownloadsDir),
		slog.String("remoteSavePath", cfg.RemoteSavePath),
		slog.Float64("minReadyPercent", cfg.MinReadyPercent),
	)

	store := filesystem.NewStore(cfg.DownloadsDir, cfg.RemoteSavePath)
	if err := store.EnsureRoot(); err != nil {
		logger.Warn("downloads directory unavailable; streams will fail until it is mounted",
			slog.String("dir", cfg.DownloadsDir),
			slog.String("error", err.Error()),
		)
	}

	sessions := qbittorrent.NewSessionManager(qbittorrent.SessionConfig{
		BaseURL:  cfg.QBitURL,
		Username: cfg.QBitUser,
		Password: cfg.QBitPass,
		TTL:      cfg.QBitSessionTTL,
		Timeout:  cfg.QBitTimeout,
		Logger:   logger.With("component", "qbittorrent"),
	})
	qbit := qbittorrent.NewClient(cfg.QBitURL, cfg.QBitTimeout, sessions, logger.With("component", "qbittorrent"))
	torrentService := torrent.NewService(qbit, cfg.QBitSavePath)

	tracker := availability.NewTracker(qbit, availability.Options{
		MinReadyFraction: cfg.MinReadyPercent / 100,
		ExpediteWindow:   cfg.ExpediteWindow,
		Logger:           logger.With("component", "availability"),
	})

	authService, err := auth.NewService(cfg.AdminUser, cfg.AdminPass, cfg.SessionTTL())
	if err != nil {
		logger.Error("auth init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if !authService.Enabled() {
		logger.Warn("ADMIN_PASS is empty; dashboard authentication is disabled")
	}

	sonarr := arr.NewClient(arr.KindSeries, cfg.SonarrURL, cfg.SonarrAPIKey, 0, logger)
	radarr := arr.NewClient(arr.KindMovies, cfg.RadarrURL, cfg.RadarrAPIKey, 0, logger)
	indexer := jackett.NewClient(cfg.JackettURL, cfg.JackettAPIKey, 0, logger)

	handler := httptransport.NewHandler(httptransport.Options{
		Torrents: torrentService,
		Tracker:  tracker,
		Files:    store,
		Libraries: map[arr.Kind]httptransport.LibraryService{
			arr.KindSeries: sonarr,
			arr.KindMovies: radarr,
		},
		Indexer:         indexer,
		Auth:            authService,
		Probe:           qbit,
		Logger:          logger.With("component", "http"),
		RetryAfter:      cfg.RetryAfter,
		ExpediteTimeout: cfg.QBitTimeout,
		SecureCookies:   cfg.SecureCookies,
	})
	router := httptransport.NewRouter(handler, httptransport.RouterOptions{
		CORSOrigins: cfg.CORSOrigins,
		Metrics:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Logger:      logger.With("component", "http"),
	})

	server := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server started", slog.String("addr", cfg.ServerAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", slog.String("error", err.Error()))
	}
	logger.Info("server stopped")
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	options := &slog.HandlerOptions{Level: parseLogLevel(levelRaw)}
	if strings.ToLower(strings.TrimSpace(formatRaw)) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
