package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// Run serves the mirror until ctx is cancelled.
func Run(ctx context.Context, cfg *Config) error {
	h, err := NewHandler(cfg)
	if err != nil {
		return fmt.Errorf("building handler: %w", err)
	}
	defer h.Close()

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: h,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		_ = srv.Shutdown(context.Background())
	}()

	slog.Info("serving mirror", slog.String("addr", cfg.Addr), slog.Any("repos", cfg.RepoNames()))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
