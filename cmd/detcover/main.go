package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"detcover/config"
	"detcover/internal/api"
	"detcover/internal/cache"
	"detcover/internal/engine"
	"detcover/internal/logger"
	"detcover/internal/metrics"
	"detcover/internal/opstore"
	"detcover/internal/publish"
)

func findConfigFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat("detcover.yml"); err == nil {
		return "detcover.yml"
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, "detcover.yml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "detcover.yml"
}

func applyDefaults(cfg *config.Config) {
	if cfg.DetCover.OperationStore.Mode == "" {
		cfg.DetCover.OperationStore.Mode = "memory"
	}
	if cfg.DetCover.OperationStore.Timeout <= 0 {
		cfg.DetCover.OperationStore.Timeout = 10 * time.Second
	}

	if cfg.DetCover.Analysis.DefaultTimeframeHours <= 0 {
		cfg.DetCover.Analysis.DefaultTimeframeHours = 24
	}

	if cfg.DetCover.Cache.TTL <= 0 {
		cfg.DetCover.Cache.TTL = 5 * time.Minute
	}
	if cfg.DetCover.Cache.MaxEntries <= 0 {
		cfg.DetCover.Cache.MaxEntries = 1024
	}

	if cfg.DetCover.ReportCache.Addr == "" {
		cfg.DetCover.ReportCache.Addr = "127.0.0.1:6379"
	}
	if cfg.DetCover.ReportCache.TTL <= 0 {
		cfg.DetCover.ReportCache.TTL = 15 * time.Minute
	}
	if cfg.DetCover.ReportCache.KeyPrefix == "" {
		cfg.DetCover.ReportCache.KeyPrefix = "detcover:report"
	}

	if cfg.DetCover.Publish.Subject == "" {
		cfg.DetCover.Publish.Subject = "detcover.reports"
	}

	if cfg.DetCover.Server.Listen == "" {
		cfg.DetCover.Server.Listen = ":8089"
	}

	if cfg.DetCover.Logging.Level == "" {
		cfg.DetCover.Logging.Level = "info"
	}

	for i := range cfg.DetCover.Sources {
		src := &cfg.DetCover.Sources[i]
		if src.Timeout <= 0 {
			src.Timeout = 30 * time.Second
		}
		if src.Name == "" {
			src.Name = strings.ToLower(src.Type)
		}
	}
}

func buildStore(cfg config.OperationStoreConfig) opstore.Store {
	if cfg.Mode == "http" {
		store, err := opstore.NewHTTPStore(opstore.HTTPConfig{
			URL:     cfg.URL,
			Token:   cfg.Token,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			log.Fatalf("Failed to build operation store: %v", err)
		}
		return store
	}
	return opstore.NewMemoryStore()
}

func main() {
	configArg := flag.String("config", "", "path to config file")
	flag.Parse()

	configPath := findConfigFile(*configArg)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyDefaults(cfg)

	dc := cfg.DetCover
	if err := logger.Init(dc.Logging.Enabled, dc.Logging.Level, dc.Logging.File, dc.Logging.Console); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger.Infof("Starting detcover with config %s", configPath)

	opts := engine.Options{Metrics: metrics.New()}

	if dc.ReportCache.Enabled {
		reports, err := cache.NewRedisReportCache(cache.RedisReportConfig{
			Addr:      dc.ReportCache.Addr,
			Password:  dc.ReportCache.Password,
			DB:        dc.ReportCache.DB,
			KeyPrefix: dc.ReportCache.KeyPrefix,
			TTL:       dc.ReportCache.TTL,
		})
		if err != nil {
			log.Fatalf("Failed to connect report cache: %v", err)
		}
		opts.Reports = reports
		logger.Infof("Report cache enabled at %s", dc.ReportCache.Addr)
	}

	if dc.Publish.Enabled {
		publisher, err := publish.NewReportPublisher(dc.Publish.URL, dc.Publish.Subject)
		if err != nil {
			log.Fatalf("Failed to connect report publisher: %v", err)
		}
		opts.Publisher = publisher
		logger.Infof("Report publishing enabled on subject %s", dc.Publish.Subject)
	}

	eng := engine.New(dc, buildStore(dc.OperationStore), opts)
	defer eng.Close()

	srv := &http.Server{
		Addr:    dc.Server.Listen,
		Handler: api.NewServer(eng).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API listening on %s", dc.Server.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Infof("Received signal %v, shutting down", sig)
	case err := <-errCh:
		logger.Errorf("HTTP server failed: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Shutdown error: %v", err)
	}
	logger.Infof("detcover stopped")
}
