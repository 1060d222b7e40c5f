// Package mirror copies the configured paths into the decrypted mount with rsync.
package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/fgeck/snapcron/internal/config"
	"github.com/fgeck/snapcron/internal/models"
	"github.com/fgeck/snapcron/internal/services/mount"
	"github.com/fgeck/snapcron/internal/services/shell"
	"github.com/rs/zerolog"
)

// SyncError reports the first path whose mirror failed.
type SyncError struct {
	Path string
	Err  error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync of %s failed: %v", e.Path, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Service defines the interface for mirroring operations.
type Service interface {
	SyncAll(ctx context.Context, cfg models.BackupConfig) (*models.SyncResult, error)
}

// Impl implements the Service interface.
type Impl struct {
	shell  shell.Service
	mount  mount.Service
	logger zerolog.Logger
}

// New creates a new mirror service.
func New(logger zerolog.Logger) *Impl {
	sh := shell.New(logger)
	return &Impl{
		shell:  sh,
		mount:  mount.NewWithShell(logger, sh),
		logger: logger,
	}
}

// NewWithServices creates a new mirror service with custom collaborators (for testing).
func NewWithServices(logger zerolog.Logger, sh shell.Service, mountSvc mount.Service) *Impl {
	return &Impl{
		shell:  sh,
		mount:  mountSvc,
		logger: logger,
	}
}

// SyncAll mirrors every configured path in order and stops at the first failure.
// Nothing already copied is rolled back, and the mount is left in place on failure.
func (s *Impl) SyncAll(ctx context.Context, cfg models.BackupConfig) (*models.SyncResult, error) {
	decrypted, err := config.Require(models.KeyDecryptedMountpoint, cfg.DecryptedMountpoint)
	if err != nil {
		return nil, err
	}

	flags, err := config.Args(models.KeyRsyncFlags, cfg.RsyncFlags)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result := &models.SyncResult{SyncedPaths: []string{}}

	for _, path := range cfg.FilePaths {
		s.logger.Info().Str("path", path).Str("target", decrypted).Msg("syncing path")

		args := make([]string, 0, len(flags)+2)
		args = append(args, path)
		args = append(args, flags...)
		args = append(args, decrypted)

		if _, err := s.shell.Run(ctx, shell.Command{Name: "rsync", Args: args}); err != nil {
			result.Duration = time.Since(start)
			return result, &SyncError{Path: path, Err: err}
		}
		result.SyncedPaths = append(result.SyncedPaths, path)
	}

	if cfg.ShouldUnmount() {
		if err := s.mount.Unmount(ctx, cfg); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}
		result.Unmounted = true
	} else {
		s.logger.Info().Str("target", decrypted).Msg("leaving encrypted filesystem mounted")
	}

	result.Duration = time.Since(start)
	s.logger.Info().
		Int("paths", len(result.SyncedPaths)).
		Bool("unmounted", result.Unmounted).
		Dur("duration", result.Duration).
		Msg("sync completed")

	return result, nil
}
