package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"hebrewvocab/internal/config"
	"hebrewvocab/internal/kv"
	"hebrewvocab/internal/metrics"
	"hebrewvocab/internal/rooms"
)

const shutdownTimeout = 10 * time.Second

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg config.Config) error {
	m := metrics.New()
	store := kv.NewStore()
	svc := rooms.NewService(store, rooms.Options{
		TTL:        cfg.RoomTTL,
		RoundDelay: cfg.RoundDelay,
		Metrics:    m,
	})
	defer svc.Close()

	srv := New(store, svc, m, cfg)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go svc.RunSweeper(sweepCtx, cfg.SweepInterval)

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       120 * time.Second,
	}
	// open streams end when their rooms are released
	httpSrv.RegisterOnShutdown(svc.Close)

	errCh := make(chan error, 1)
	go func() {
		srv.log.Info().Str("addr", httpSrv.Addr).Msg("listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	srv.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
