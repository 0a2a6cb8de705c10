package main

import (
	"context"
	"fmt"
	"os"

	"chatwidget/internal/backend"
	"chatwidget/internal/config"
	"chatwidget/internal/export"
	"chatwidget/internal/logging"
	"chatwidget/internal/storage"
	"chatwidget/internal/transcript"
	"chatwidget/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Parse(args)
	if err != nil {
		return err
	}

	log, closer, err := logging.ToFile(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backing, closeStore, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()
	store := transcript.NewStore(backing, log)

	switch {
	case cfg.Forget:
		if err := backing.Clear(ctx); err != nil {
			return fmt.Errorf("forget session: %w", err)
		}
		fmt.Printf("Forgot session %s\n", cfg.SessionID)
		return nil
	case cfg.Print:
		width := 100
		if w, _, err := term.GetSize(os.Stdout.Fd()); err == nil && w > 0 {
			width = w
		}
		fmt.Print(export.RenderTerminal(export.BuildTranscriptMarkdown(store.Load(ctx)), width))
		return nil
	}

	exporter, err := export.New(cfg.ExportDir)
	if err != nil {
		return err
	}
	client := backend.New(cfg.ServerURL, cfg.Timeout, log)

	log.Info().
		Str("session", cfg.SessionID).
		Str("server", cfg.ServerURL).
		Bool("ephemeral", cfg.Ephemeral).
		Msg("starting chat widget")

	m := ui.NewModel(ctx, cfg, store, client, exporter, log)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return err
	}
	fmt.Printf("Session %s\n", cfg.SessionID)
	return nil
}

func openStorage(ctx context.Context, cfg config.AppConfig, log zerolog.Logger) (storage.Storage, func(), error) {
	if cfg.Ephemeral {
		return storage.NewMemory(), func() {}, nil
	}
	db, err := storage.OpenSQLite(ctx, cfg.DBPath, cfg.SessionID, cfg.SessionTTL, storage.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}
	return db, func() {
		if err := db.Close(); err != nil {
			log.Warn().Err(err).Msg("close session store")
		}
	}, nil
}
