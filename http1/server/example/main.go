package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jbrizuela2/railless-ruby-server/http1/server"
	"github.com/jbrizuela2/railless-ruby-server/http1/static"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := server.LoadConfig()
	if err != nil {
		return err
	}
	log, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		return err
	}

	cache, err := static.NewCache(cfg.CacheSize)
	if err != nil {
		return err
	}
	resolver, err := static.New(cfg.StaticRoot,
		static.WithDefaultDocument(cfg.DefaultDocument),
		static.WithCache(cache),
		static.WithLogger(log),
	)
	if err != nil {
		return err
	}

	s := &server.Server{
		Addr:         cfg.Addr(),
		Handler:      resolver,
		Logger:       &log,
		MaxConns:     cfg.MaxConns,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.Addr).Str("root", resolver.BasePath()).Msg("starting server")
		errCh <- s.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, server.ErrServerClosed) {
		return err
	}
	return nil
}
