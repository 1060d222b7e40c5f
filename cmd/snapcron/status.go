package main

import (
	"fmt"

	"github.com/fgeck/snapcron/internal/config"
	"github.com/fgeck/snapcron/internal/services/snapshot"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List snapshot generations on disk",
	Long:  `List the generations of every frequency in SNAPSHOTS found below the encrypted mount point.`,
	Args:  cobra.NoArgs,
	RunE:  showStatus,
}

func showStatus(cmd *cobra.Command, args []string) error {
	parser := config.NewParser()
	cfg, err := parser.LoadFile(configFile)
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to load config")
		return err
	}

	depths, err := snapshot.ParseDepths(cfg.Snapshots)
	if err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return err
	}

	generations, err := snapshot.New(log.Logger).List(*cfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to list snapshots")
		return err
	}

	out := cmd.OutOrStdout()
	if len(generations) == 0 {
		fmt.Fprintln(out, yellow("No snapshots found in "+cfg.EncryptedMountpoint))
		return nil
	}

	current := ""
	for _, g := range generations {
		if g.Frequency != current {
			current = g.Frequency
			fmt.Fprintf(out, "%s %s\n", cyan(current), gray(fmt.Sprintf("(keep %d)", depths[current])))
		}
		fmt.Fprintf(out, "  %-12s %s\n", snapshot.GenerationName(g.Frequency, g.Index), g.ModTime.Format("2006-01-02 15:04:05"))
	}
	return nil
}
