package app

import (
	"context"
	"io"
	"log/slog"
	"os"

	fyneapp "fyne.io/fyne/v2/app"

	"yashubustudio/bioscan/bioscan"
	"yashubustudio/bioscan/internal/settings"
)

// Run loads configuration, builds the analyzer and starts the desktop UI.
// The model loads in the background while the window shows a loading overlay.
func Run() error {
	cfgPath := os.Getenv(settings.EnvConfigPath)
	cfg, err := settings.Load(cfgPath)
	if err != nil {
		return err
	}

	logs := newLogBuffer(logLineLimit)
	logger := slog.New(slog.NewTextHandler(io.MultiWriter(os.Stderr, logs), &slog.HandlerOptions{
		Level: settings.ParseLevel(cfg.LogLevel),
	}))

	registry, err := settings.NewRegistry(cfg, nil)
	if err != nil {
		return err
	}
	embedder, err := settings.NewEmbedder(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer embedder.Close()

	analyzer, err := bioscan.NewAnalyzer(registry, embedder, bioscan.WithAnalyzerLogger(logger))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer analyzer.Wait()
	defer cancel()

	a := fyneapp.NewWithID(fyneAppID)
	u := buildUI(a, analyzer, embedder, cfg, cfgPath, logs, logger)
	u.start(ctx)
	logger.Info("bioscan started", "embedder", cfg.Embedder.Kind, "receptors", registry.Len())
	u.w.ShowAndRun()
	return nil
}
