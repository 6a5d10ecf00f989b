package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/csheth/paperdesk/internal/api"
	"github.com/csheth/paperdesk/internal/config"
	"github.com/csheth/paperdesk/internal/logging"
	"github.com/csheth/paperdesk/internal/session"
	"github.com/csheth/paperdesk/internal/tui"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Println("invalid configuration:", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Println("program error:", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	logger, err := logging.New(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	client, err := api.New(api.Config{
		BaseURL: cfg.Server,
		Timeout: cfg.RequestTimeout,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	documents, err := api.NewDocumentCache(client, cfg.CacheDir)
	if err != nil {
		logger.Warn("document cache disabled", zap.Error(err))
	}

	sessionCfg := session.Config{
		Backend:      client,
		PollInterval: cfg.PollInterval,
		Logger:       logger,
	}
	if documents != nil {
		sessionCfg.Documents = documents
	}
	controller := session.New(sessionCfg)
	defer controller.Close()

	logger.Info("starting", zap.String("server", cfg.Server), zap.Duration("poll_interval", cfg.PollInterval))

	opts := []tea.ProgramOption{}
	if !cfg.NoAltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	program := tea.NewProgram(
		tui.New(tui.Config{
			Session: controller,
			Server:  cfg.Server,
		}),
		opts...,
	)
	_, err = program.Run()
	return err
}
