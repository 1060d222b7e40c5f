package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/fgeck/snapcron/internal/config"
	"github.com/fgeck/snapcron/internal/services/snapshot"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the configuration file without mounting, syncing or rotating anything.`,
	Args:  cobra.NoArgs,
	RunE:  validateConfig,
}

var (
	green  = color.New(color.FgGreen, color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

func validateConfig(cmd *cobra.Command, args []string) error {
	parser := config.NewParser()
	cfg, err := parser.LoadFile(configFile)
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to parse config")
		return err
	}

	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("configuration validation failed")
		return err
	}

	depths, err := snapshot.ParseDepths(cfg.Snapshots)
	if err != nil {
		log.Error().Err(err).Msg("configuration validation failed")
		return err
	}

	// Optional features are parsed lazily by a run; check them here as well.
	wolCfg, err := config.WOL(cfg)
	if err != nil {
		log.Error().Err(err).Msg("configuration validation failed")
		return err
	}
	sshCfg, err := config.SSHShutdown(cfg)
	if err != nil {
		log.Error().Err(err).Msg("configuration validation failed")
		return err
	}
	tgCfg, err := config.Telegram(cfg)
	if err != nil {
		log.Error().Err(err).Msg("configuration validation failed")
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, green("Configuration is valid!"))
	fmt.Fprintln(out)
	fmt.Fprintln(out, cyan("Summary:"))
	fmt.Fprintf(out, "  Encrypted mount point: %s\n", cfg.EncryptedMountpoint)
	fmt.Fprintf(out, "  Decrypted mount point: %s\n", cfg.DecryptedMountpoint)
	fmt.Fprintf(out, "  Rsync flags: %s\n", orNone(cfg.RsyncFlags))
	fmt.Fprintf(out, "  Pre-mount: %s\n", orNone(cfg.PreMount))
	fmt.Fprintf(out, "  Unmount at end: %v\n", cfg.ShouldUnmount())
	fmt.Fprintf(out, "  Log file: %s\n", orNone(cfg.LogFile))

	fmt.Fprintln(out)
	fmt.Fprintln(out, cyan("Paths:"))
	for _, p := range cfg.FilePaths {
		fmt.Fprintf(out, "  %s\n", p)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, cyan("Snapshots:"))
	frequencies := make([]string, 0, len(depths))
	for f := range depths {
		frequencies = append(frequencies, f)
	}
	sort.Strings(frequencies)
	for _, f := range frequencies {
		if depths[f] <= 0 {
			fmt.Fprintf(out, "  %s: %s\n", f, yellow(fmt.Sprintf("%d (rotation will fail)", depths[f])))
			continue
		}
		fmt.Fprintf(out, "  %s: %d\n", f, depths[f])
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, cyan("Optional Features:"))
	fmt.Fprintf(out, "  Wake-on-LAN: %s\n", enabled(wolCfg != nil))
	fmt.Fprintf(out, "  SSH Shutdown: %s\n", enabled(sshCfg != nil))
	fmt.Fprintf(out, "  Telegram: %s\n", enabled(tgCfg != nil))

	if wolCfg != nil {
		fmt.Fprintln(out)
		fmt.Fprintln(out, cyan("WOL Configuration:"))
		fmt.Fprintf(out, "  MAC Address: %s\n", wolCfg.MACAddress)
		fmt.Fprintf(out, "  Broadcast IP: %s\n", wolCfg.BroadcastIP)
		if wolCfg.PollURL != "" {
			fmt.Fprintf(out, "  Poll URL: %s\n", wolCfg.PollURL)
		}
		fmt.Fprintf(out, "  Timeout: %s\n", wolCfg.Timeout)
	}

	if sshCfg != nil {
		fmt.Fprintln(out)
		fmt.Fprintln(out, cyan("SSH Shutdown Configuration:"))
		fmt.Fprintf(out, "  Host: %s\n", sshCfg.Host)
		fmt.Fprintf(out, "  Port: %d\n", sshCfg.Port)
		fmt.Fprintf(out, "  Username: %s\n", sshCfg.Username)
		fmt.Fprintf(out, "  OS: %s\n", sshCfg.OS)
		fmt.Fprintf(out, "  Shutdown Delay: %d minute(s)\n", sshCfg.ShutdownDelay)
	}

	if tgCfg != nil {
		fmt.Fprintln(out)
		fmt.Fprintln(out, cyan("Telegram Configuration:"))
		fmt.Fprintf(out, "  Chat ID: %s\n", tgCfg.ChatID)
		fmt.Fprintf(out, "  Bot Token: %s\n", gray("(configured)"))
	}

	return nil
}

func orNone(s string) string {
	if s == "" {
		return gray("(none)")
	}
	return s
}

func enabled(on bool) string {
	if on {
		return green("enabled")
	}
	return gray("disabled")
}
