package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"containercore/internal/adapters/batchapi"
	"containercore/internal/adapters/exports"
	"containercore/internal/config"
	"containercore/internal/core"
	"containercore/internal/infra/blob"
	"containercore/internal/infra/persistence/memory"
	"containercore/internal/infra/persistence/postgres"
	"containercore/internal/infra/persistence/sqlite"
	"containercore/pkg/domain"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the containercore HTTP API.

The server applies instruction batches transactionally, serves committed
container state, and runs asynchronous exports to the configured blob store.

Example:
  containercore serve --config config.yaml
  containercore serve --addr :9090 --log-format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "HTTP listen address (overrides config)")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.Addr = opts.Addr
	}

	logger := slog.Default()

	engine := core.NewDefaultRulesEngine()
	store, cleanup, err := openStore(cfg.Storage, engine)
	if err != nil {
		return err
	}
	defer cleanup()

	blobStore, err := openBlob(ctx, cfg.Blob)
	if err != nil {
		return err
	}

	metrics := batchapi.NewPrometheusMetricsRecorder()
	service := core.NewService(store,
		core.WithLogger(core.NewSlogLogger(logger)),
		core.WithMetrics(metrics),
	)

	worker := exports.NewWorker(store, blobStore, exports.NewLogAudit(core.NewSlogLogger(logger)))
	worker.Start()

	handler := batchapi.NewHandler(service, store)
	handler.Exports = worker
	handler.Metrics = metrics.Handler()
	handler.Passcode = cfg.Passcode

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Addr, "storage", cfg.Storage.Driver, "blob", cfg.Blob.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return worker.Stop(shutdownCtx)
}

func openStore(cfg config.StorageConfig, engine *domain.RulesEngine) (domain.PersistentStore, func(), error) {
	switch strings.ToLower(cfg.Driver) {
	case "memory":
		return memory.NewStore(engine), func() {}, nil
	case "sqlite":
		store, err := sqlite.NewStore(cfg.SQLitePath, engine)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case "postgres":
		store, err := postgres.NewStore(cfg.PostgresDSN, engine)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func openBlob(ctx context.Context, cfg config.BlobConfig) (blob.Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "fs":
		return blob.NewFilesystem(cfg.FSRoot)
	case "s3":
		return blob.OpenS3FromEnv(ctx)
	case "memory":
		return blob.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}
