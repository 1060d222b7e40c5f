package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fgeck/snapcron/internal/config"
	"github.com/fgeck/snapcron/internal/logging"
	"github.com/fgeck/snapcron/internal/services/runner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func runBackup(cmd *cobra.Command, args []string) error {
	parser := config.NewParser()
	cfg, err := parser.LoadFile(configFile)
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to load config")
		return err
	}

	if cfg.LogFile != "" {
		logger, closeLog, err := logging.New(afero.NewOsFs(), logging.Console(os.Stdout, jsonOutput), cfg.LogFile)
		if err != nil {
			log.Error().Err(err).Msg("failed to open log file")
			return err
		}
		defer func() { _ = closeLog() }()
		log.Logger = logger
	}

	log.Debug().
		Str("config", configFile).
		Strs("modes", args).
		Int("paths", len(cfg.FilePaths)).
		Msg("configuration loaded")

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Warn().Str("signal", sig.String()).Msg("received signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runner.New(log.Logger).Run(ctx, *cfg, args)
}
