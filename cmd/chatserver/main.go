package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatwidget/internal/config"
	"chatwidget/internal/logging"
	"chatwidget/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.ParseServer()
	if err != nil {
		return err
	}
	log, err := logging.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}

	var answerer server.Answerer
	switch {
	case cfg.Echo:
		answerer = server.Echo{}
		log.Warn().Msg("echo mode: replies repeat the message")
	default:
		a, err := server.NewOpenAI(server.OpenAIConfig{
			Endpoint:   cfg.OpenAIEndpoint,
			Deployment: cfg.OpenAIDeployment,
			APIKey:     cfg.OpenAIAPIKey,
			APIVersion: cfg.OpenAIAPIVersion,
			APIType:    cfg.OpenAIAPIType,
		})
		if err != nil {
			log.Warn().Err(err).Msg("chat requests will fail until OPENAI_ENDPOINT and OPENAI_DEPLOYMENT are set")
		} else {
			answerer = a
		}
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.New(answerer, log).Handler(cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("chat server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
