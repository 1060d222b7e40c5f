package main

import (
	"os"

	"github.com/fgeck/snapcron/internal/config"
	"github.com/fgeck/snapcron/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "dev"

	// Configuration flags.
	configFile string
	verbose    bool
	quiet      bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "snapcron [modes...]",
	Short: "An encrypted rsync backup with rotating hardlink snapshots",
	Long: `snapcron is a backup orchestrator meant to be called from cron:
  - sync (or snapshot): mount the encfs view, rsync every listed path into it
  - any other mode names a snapshot frequency from SNAPSHOTS and rotates it

The sync phase always runs first. Remaining modes rotate in the order given:

  snapcron sync hourly
  snapcron daily

Wake-on-LAN, SSH shutdown and Telegram notifications are enabled by their
directives in the config file.`,
	Args: cobra.ArbitraryArgs,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
	RunE:          runBackup,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultPath, "config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "enable quiet mode (errors only)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output logs in JSON format")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(statusCmd)
}

func setupLogging() {
	log.Logger = zerolog.New(logging.Console(os.Stdout, jsonOutput)).With().Timestamp().Logger()

	switch {
	case quiet:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case verbose:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
