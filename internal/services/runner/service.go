// Package runner dispatches the requested modes of one cron invocation.
package runner

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/fgeck/snapcron/internal/config"
	"github.com/fgeck/snapcron/internal/models"
	"github.com/fgeck/snapcron/internal/services/mirror"
	"github.com/fgeck/snapcron/internal/services/mount"
	"github.com/fgeck/snapcron/internal/services/shell"
	"github.com/fgeck/snapcron/internal/services/snapshot"
	"github.com/fgeck/snapcron/internal/services/ssh"
	"github.com/fgeck/snapcron/internal/services/telegram"
	"github.com/fgeck/snapcron/internal/services/wol"
	"github.com/rs/zerolog"
)

// Tokens that trigger the sync phase. Every other token names a snapshot frequency.
const (
	ModeSync     = "sync"
	ModeSnapshot = "snapshot"
)

// IsSyncMode reports whether token requests the mount and sync phase.
func IsSyncMode(token string) bool {
	return token == ModeSync || token == ModeSnapshot
}

// Service defines the interface for the dispatcher.
type Service interface {
	Run(ctx context.Context, cfg models.BackupConfig, modes []string) error
}

// Impl implements the Service interface.
type Impl struct {
	mountSvc    mount.Service
	mirrorSvc   mirror.Service
	snapshotSvc snapshot.Service
	wolSvc      wol.Service
	sshSvc      ssh.Service
	telegramSvc telegram.Service
	logger      zerolog.Logger
}

// New creates a new runner with the production services.
func New(logger zerolog.Logger) *Impl {
	sh := shell.New(logger)
	mountSvc := mount.NewWithShell(logger, sh)
	return &Impl{
		mountSvc:    mountSvc,
		mirrorSvc:   mirror.NewWithServices(logger, sh, mountSvc),
		snapshotSvc: snapshot.New(logger),
		wolSvc:      wol.New(logger),
		sshSvc:      ssh.New(logger),
		telegramSvc: telegram.New(logger),
		logger:      logger,
	}
}

// NewWithServices creates a new runner with custom services (for testing).
func NewWithServices(
	logger zerolog.Logger,
	mountSvc mount.Service,
	mirrorSvc mirror.Service,
	snapshotSvc snapshot.Service,
	wolSvc wol.Service,
	sshSvc ssh.Service,
	telegramSvc telegram.Service,
) *Impl {
	return &Impl{
		mountSvc:    mountSvc,
		mirrorSvc:   mirrorSvc,
		snapshotSvc: snapshotSvc,
		wolSvc:      wolSvc,
		sshSvc:      sshSvc,
		telegramSvc: telegramSvc,
		logger:      logger,
	}
}

// extras holds the optional homelab helpers resolved from the config.
type extras struct {
	wol      *models.WOLConfig
	shutdown *models.SSHShutdownConfig
	telegram *models.TelegramConfig
}

func loadExtras(cfg *models.BackupConfig, withSync bool) (extras, error) {
	var e extras
	var err error
	if e.telegram, err = config.Telegram(cfg); err != nil {
		return e, err
	}
	if !withSync {
		return e, nil
	}
	if e.wol, err = config.WOL(cfg); err != nil {
		return e, err
	}
	if e.shutdown, err = config.SSHShutdown(cfg); err != nil {
		return e, err
	}
	return e, nil
}

// Run executes the sync phase first if any token asks for it, then rotates
// each remaining frequency in argument order. The first failure ends the run.
func (s *Impl) Run(ctx context.Context, cfg models.BackupConfig, modes []string) (runErr error) {
	if len(modes) == 0 {
		s.logger.Warn().Msg("no modes requested, nothing to do")
		return nil
	}

	withSync := slices.ContainsFunc(modes, IsSyncMode)
	ex, err := loadExtras(&cfg, withSync)
	if err != nil {
		s.logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	report := models.TelegramMessage{
		Host:      hostname(),
		Modes:     modes,
		StartTime: time.Now(),
	}
	if ex.telegram != nil {
		defer func() {
			report.Success = runErr == nil
			report.Duration = time.Since(report.StartTime)
			if runErr != nil {
				report.ErrorMessage = runErr.Error()
			}
			s.notify(context.WithoutCancel(ctx), *ex.telegram, report)
		}()
	}

	if withSync {
		report.FailedStep = ModeSync
		if err := s.runSync(ctx, cfg, ex.wol, &report); err != nil {
			return err
		}
	}

	for _, mode := range modes {
		if IsSyncMode(mode) {
			continue
		}
		report.FailedStep = mode
		result, err := s.runSnapshot(ctx, cfg, mode)
		if err != nil {
			return err
		}
		report.Rotations = append(report.Rotations, *result)
	}

	if withSync && ex.shutdown != nil {
		report.FailedStep = "ssh_shutdown"
		if _, err := s.sshSvc.Shutdown(ctx, *ex.shutdown); err != nil {
			s.logger.Error().Err(err).Msg("remote shutdown failed")
			return fmt.Errorf("remote shutdown failed: %w", err)
		}
	}

	report.FailedStep = ""
	return nil
}

func (s *Impl) runSync(ctx context.Context, cfg models.BackupConfig, wolCfg *models.WOLConfig, report *models.TelegramMessage) error {
	s.logger.Info().Msg("Start Backup")
	defer func() { s.logger.Info().Msg("End Backup") }()

	if wolCfg != nil {
		if _, err := s.wolSvc.Wake(ctx, *wolCfg); err != nil {
			s.logger.Error().Err(err).Msg("waking backup host failed")
			return fmt.Errorf("wake failed: %w", err)
		}
	}

	if err := s.mountSvc.Prepare(ctx, cfg); err != nil {
		s.logger.Error().Err(err).Msg("backup failed")
		return err
	}

	result, err := s.mirrorSvc.SyncAll(ctx, cfg)
	if result != nil {
		report.SyncedPaths = len(result.SyncedPaths)
		report.Unmounted = result.Unmounted
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("backup failed")
		return err
	}

	return nil
}

func (s *Impl) runSnapshot(ctx context.Context, cfg models.BackupConfig, frequency string) (*models.RotationResult, error) {
	s.logger.Info().Msgf("Start %s Snapshot", frequency)
	defer func() { s.logger.Info().Msgf("End %s Snapshot", frequency) }()

	result, err := s.snapshotSvc.Rotate(ctx, cfg, frequency)
	if err != nil {
		s.logger.Error().Err(err).Str("frequency", frequency).Msg("snapshot failed")
		return nil, err
	}
	return result, nil
}

func (s *Impl) notify(ctx context.Context, cfg models.TelegramConfig, msg models.TelegramMessage) {
	if _, err := s.telegramSvc.SendNotification(ctx, cfg, msg); err != nil {
		s.logger.Error().Err(err).Msg("failed to send Telegram notification")
		return
	}
	s.logger.Info().Msg("Telegram notification sent")
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}
