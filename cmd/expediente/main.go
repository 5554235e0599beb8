// cmd/expediente/main.go
//
// Entry point for the record editor. Opens a new record by default, or an
// existing one with --record.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/drvillela/expediente/internal/api"
	"github.com/drvillela/expediente/internal/config"
	"github.com/drvillela/expediente/internal/draft"
	"github.com/drvillela/expediente/internal/editor"
	"github.com/drvillela/expediente/internal/logging"
	"github.com/drvillela/expediente/internal/progress"
	"github.com/drvillela/expediente/internal/registry"
	"github.com/drvillela/expediente/internal/stager"
	"github.com/drvillela/expediente/internal/tui"
	"go.uber.org/zap"
)

func main() {
	recordID := flag.Int("record", 0, "id of an existing record to open (omit for a new record)")
	dataDir := flag.String("data-dir", "", "data directory (default ~/.expediente)")
	flag.Parse()

	if err := run(*recordID, *dataDir); err != nil {
		fmt.Fprintf(os.Stderr, "expediente: %v\n", err)
		os.Exit(1)
	}
}

func run(recordID int, dataDir string) error {
	cfg, err := config.Load(dataDir)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogsDir(), cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	client := api.NewClient(cfg.Server.BaseURL, logger, api.WithTimeout(cfg.Timeout()))
	reg := registry.New(logger)
	engine := draft.NewEngine(
		draft.NewFileStore(cfg.DraftsDir()),
		logger,
		draft.WithInterval(cfg.AutosaveInterval()),
	)
	stg := stager.New(logger, stager.WithMaxBytes(cfg.Images.MaxBytes))
	tracker := progress.New()

	session, err := editor.NewSession(client, reg, engine, stg, tracker, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	offer, err := session.Open(context.Background(), recordID)
	if err != nil {
		return err
	}

	app := tui.NewApp(session, reg, tracker, offer, logger)
	program := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		logger.Error("editor exited with error", zap.Error(err))
		return err
	}
	return nil
}
