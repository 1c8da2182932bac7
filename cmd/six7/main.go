package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"six7/internal/auth"
	"six7/internal/config"
	"six7/internal/core"
	"six7/internal/metrics"
	"six7/internal/tracing"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

func defaultConfigPath() string {
	if v, ok := os.LookupEnv("SIX7_CONFIG"); ok && v != "" {
		return v
	}
	return config.DefaultPath
}

func newAuthEngine(cfg config.Config) auth.AuthEngine {
	if cfg.Auth.Mode == config.AuthModeNone {
		return nil
	}

	creds := cfg.Credentials()
	return auth.NewCompoundAuthEngine(
		auth.NewAwsHmacAuthEngine(creds),
		auth.NewBasicAuthEngine(creds),
	)
}

// provisionBuckets creates every configured bucket. Failures are logged and
// do not stop startup.
func provisionBuckets(ctx context.Context, store *core.Store, buckets []config.BucketConfig) {
	for _, b := range buckets {
		if err := store.CreateBucket(ctx, b.Name); err != nil {
			slog.Error("Failed to create configured bucket", "bucket", b.Name, "err", err)
			continue
		}
		slog.Info("Bucket ready", "bucket", b.Name)
	}
}

func adminHandler(m *metrics.Metrics, dataDir string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if info, err := os.Stat(dataDir); err != nil || !info.IsDir() {
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	return mux
}

func Run(ctx context.Context) error {

	configPath := flag.String("config", defaultConfigPath(), "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := log.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	handler := log.NewWithOptions(os.Stdout, log.Options{
		Level:           level,
		TimeFormat:      time.RFC3339,
		ReportTimestamp: true,
		TimeFunction:    log.NowUTC,
		ReportCaller:    true,
	})

	slog.SetDefault(slog.New(handler))

	shutdownTracing, err := tracing.Init(ctx, tracing.Options{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Warn("Tracing shutdown", "err", err)
		}
	}()

	// Ensure data directory is absolute for easier debugging.
	absDataDir, err := filepath.Abs(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to resolve data directory: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	m := metrics.New()

	serverCfg := core.NewConfig(
		core.WithDataDir(absDataDir),
		core.WithRegion(cfg.Server.Region),
		core.WithAuthEngine(newAuthEngine(cfg)),
		core.WithMetrics(m),
	)

	server, err := core.NewServer(ctx, serverCfg)
	if err != nil {
		return fmt.Errorf("failed to create six7 server: %w", err)
	}

	defer server.Close()

	provisionBuckets(ctx, server.Store(), cfg.Buckets)

	httpServer := &http.Server{
		Addr:              cfg.Address(),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 20 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
	}

	adminServer := &http.Server{
		Addr:              cfg.Server.AdminAddress,
		Handler:           adminHandler(m, absDataDir),
		ReadHeaderTimeout: 5 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Join(httpServer.Shutdown(shutdownCtx), adminServer.Shutdown(shutdownCtx))
	})

	eg.Go(func() error {
		if cfg.Server.AdminAddress == "" {
			slog.Debug("Skipping admin listener because no address was configured")
			return nil
		}

		slog.Info("Starting six7 admin server", "address", cfg.Server.AdminAddress)
		err := adminServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	eg.Go(func() error {
		slog.Info("Starting six7 HTTP server", "address", cfg.Address(), "data_dir", absDataDir, "auth", cfg.Auth.Mode)
		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	slog.Info("six7 Started")
	return eg.Wait()

}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx); err != nil {
		slog.Error("six7 exited with error", "error", err)
		os.Exit(1)
	}
}
