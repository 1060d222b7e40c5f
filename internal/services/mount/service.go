// Package mount prepares the encrypted backup filesystem.
package mount

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fgeck/snapcron/internal/config"
	"github.com/fgeck/snapcron/internal/models"
	"github.com/fgeck/snapcron/internal/services/shell"
	"github.com/rs/zerolog"
)

// AlreadyMountedExitCode is the status mount(8) returns when the target is already mounted.
const AlreadyMountedExitCode = 32

// Steps reported in MountError.
const (
	StepPreMount = "pre-mount"
	StepEncfs    = "encfs"
	StepUnmount  = "unmount"
)

// MountError reports a failed mount or unmount step.
type MountError struct {
	Step string
	Err  error
}

func (e *MountError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *MountError) Unwrap() error {
	return e.Err
}

// Service defines the interface for mount operations.
type Service interface {
	Prepare(ctx context.Context, cfg models.BackupConfig) error
	Unmount(ctx context.Context, cfg models.BackupConfig) error
}

// Impl implements the Service interface.
type Impl struct {
	shell  shell.Service
	logger zerolog.Logger
}

// New creates a new mount service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		shell:  shell.New(logger),
		logger: logger,
	}
}

// NewWithShell creates a new mount service with a custom shell (for testing).
func NewWithShell(logger zerolog.Logger, sh shell.Service) *Impl {
	return &Impl{
		shell:  sh,
		logger: logger,
	}
}

// Prepare mounts PRE_MOUNT (if configured) and then layers encfs over the
// "current" directory of the encrypted mount point.
func (s *Impl) Prepare(ctx context.Context, cfg models.BackupConfig) error {
	encrypted, err := config.Require(models.KeyEncryptedMountpoint, cfg.EncryptedMountpoint)
	if err != nil {
		return err
	}
	decrypted, err := config.Require(models.KeyDecryptedMountpoint, cfg.DecryptedMountpoint)
	if err != nil {
		return err
	}
	password, err := config.Require(models.KeyEncfsPassword, cfg.EncfsPassword)
	if err != nil {
		return err
	}

	preMountArgs, err := config.Args(models.KeyPreMount, cfg.PreMount)
	if err != nil {
		return err
	}

	if len(preMountArgs) > 0 {
		if err := s.preMount(ctx, preMountArgs); err != nil {
			return err
		}
	}

	current := filepath.Join(encrypted, models.CurrentDir)
	s.logger.Info().
		Str("source", current).
		Str("target", decrypted).
		Msg("mounting encrypted filesystem")

	_, err = s.shell.Run(ctx, shell.Command{
		Name:  "encfs",
		Args:  []string{"-S", current, decrypted},
		Stdin: password + "\n",
	})
	if err != nil {
		return &MountError{Step: StepEncfs, Err: err}
	}

	s.logger.Info().Str("target", decrypted).Msg("encrypted filesystem mounted")
	return nil
}

func (s *Impl) preMount(ctx context.Context, args []string) error {
	target := strings.Join(args, " ")
	s.logger.Info().Str("target", target).Msg("pre-mounting backup device")

	_, err := s.shell.Run(ctx, shell.Command{
		Name: "mount",
		Args: args,
	})
	if err == nil {
		return nil
	}

	var shellErr *shell.ShellError
	if errors.As(err, &shellErr) && shellErr.ExitCode == AlreadyMountedExitCode {
		s.logger.Info().Str("target", target).Msg("backup device already mounted")
		return nil
	}

	return &MountError{Step: StepPreMount, Err: err}
}

// Unmount tears down the decrypted view.
func (s *Impl) Unmount(ctx context.Context, cfg models.BackupConfig) error {
	decrypted, err := config.Require(models.KeyDecryptedMountpoint, cfg.DecryptedMountpoint)
	if err != nil {
		return err
	}

	s.logger.Info().Str("target", decrypted).Msg("unmounting encrypted filesystem")

	if _, err := s.shell.Run(ctx, shell.Command{
		Name: "fusermount",
		Args: []string{"-u", decrypted},
	}); err != nil {
		return &MountError{Step: StepUnmount, Err: err}
	}

	return nil
}
