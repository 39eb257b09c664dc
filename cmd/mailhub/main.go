package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mailhub/mailhub/internal/api"
	"github.com/mailhub/mailhub/internal/app"
	"github.com/mailhub/mailhub/internal/credential"
	"github.com/mailhub/mailhub/internal/mailbox"
	"github.com/mailhub/mailhub/internal/model"
	"github.com/mailhub/mailhub/internal/session"
	"github.com/mailhub/mailhub/internal/store"
)

func main() {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to config file")
	flag.Parse()

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	closeLog, err := setupLogging(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setting up logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	creds := openCredentials()

	// The flag cache is optional: without it, read/star state is
	// purely optimistic and resets on every fetch.
	var flags store.FlagCache
	if cfg.Mailbox.PersistFlags {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "creating data directory: %v\n", err)
			os.Exit(1)
		}
		s, err := store.NewSQLiteStore(cfg.Storage.DBPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "opening flag cache: %v\n", err)
			os.Exit(1)
		}
		defer s.Close()
		flags = s
	}

	client := api.NewClient(
		cfg.API.BaseURL,
		creds,
		time.Duration(cfg.API.TimeoutSec)*time.Second,
	)

	sess := session.NewController(client, creds)
	sess.StartMonitor()
	defer sess.Close()

	sync := mailbox.NewSynchronizer(
		client,
		sess,
		flags,
		time.Duration(cfg.Mailbox.PollIntervalSec)*time.Second,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sync.Run(ctx)

	program := tea.NewProgram(
		app.New(sess, sync),
		tea.WithAltScreen(),
	)

	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "running application: %v\n", err)
		os.Exit(1)
	}
}

// setupLogging directs the global zerolog logger to the configured
// file; the TUI owns the terminal, so nothing may write to stderr
// while the program runs.
func setupLogging(cfg model.LogConfig) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", cfg.File, err)
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	log.Logger = zerolog.New(f).Level(level).With().Timestamp().Logger()
	return func() { f.Close() }, nil
}

// openCredentials prefers the system keyring and falls back to an
// in-memory store (no persistence across restarts) when no keyring
// backend is available.
func openCredentials() credential.Store {
	ks, err := credential.NewKeyringStore()
	if err != nil {
		log.Warn().Err(err).Msg("system keyring unavailable, using in-memory credentials")
		return credential.NewMemoryStore()
	}
	return ks
}
