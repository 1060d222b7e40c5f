// Package snapshot rotates hardlink snapshots of the encrypted tree.
package snapshot

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fgeck/snapcron/internal/config"
	"github.com/fgeck/snapcron/internal/models"
	"github.com/fgeck/snapcron/internal/services/shell"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Operations reported in RotationError.
const (
	OpDelete = "delete"
	OpShift  = "shift"
	OpClone  = "clone"
)

// RotationError reports a filesystem step that failed mid-rotation. The
// generation chain may be inconsistent afterwards.
type RotationError struct {
	Op   string
	Path string
	Err  error
}

func (e *RotationError) Error() string {
	return fmt.Sprintf("snapshot %s of %s failed: %v", e.Op, e.Path, e.Err)
}

func (e *RotationError) Unwrap() error {
	return e.Err
}

// Service defines the interface for snapshot operations.
type Service interface {
	Rotate(ctx context.Context, cfg models.BackupConfig, frequency string) (*models.RotationResult, error)
	List(cfg models.BackupConfig) ([]models.Generation, error)
}

// Impl implements the Service interface. Mutations go through the shell;
// fs is only read.
type Impl struct {
	shell  shell.Service
	fs     afero.Fs
	logger zerolog.Logger
}

// New creates a new snapshot service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		shell:  shell.New(logger),
		fs:     afero.NewOsFs(),
		logger: logger,
	}
}

// NewWithFs creates a new snapshot service with a custom shell and filesystem (for testing).
func NewWithFs(logger zerolog.Logger, sh shell.Service, fs afero.Fs) *Impl {
	return &Impl{
		shell:  sh,
		fs:     fs,
		logger: logger,
	}
}

// GenerationName returns the directory name of one generation, e.g. "daily.3".
func GenerationName(frequency string, index int) string {
	return frequency + "." + strconv.Itoa(index)
}

// Rotate drops the oldest generation of frequency, shifts the rest one slot
// older and publishes a fresh hardlink clone of "current" as generation 1.
// Configuration problems are reported before anything on disk changes.
func (s *Impl) Rotate(ctx context.Context, cfg models.BackupConfig, frequency string) (*models.RotationResult, error) {
	root, err := config.Require(models.KeyEncryptedMountpoint, cfg.EncryptedMountpoint)
	if err != nil {
		return nil, err
	}
	depth, err := Depth(cfg, frequency)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result := &models.RotationResult{Frequency: frequency, Depth: depth}
	gen := func(i int) string { return filepath.Join(root, GenerationName(frequency, i)) }

	s.logger.Info().Str("frequency", frequency).Int("depth", depth).Msg("rotating snapshots")

	oldest := gen(depth)
	if result.Deleted, err = s.exists(oldest); err != nil {
		return result, &RotationError{Op: OpDelete, Path: oldest, Err: err}
	}
	if _, err := s.shell.Run(ctx, shell.Command{Name: "rm", Args: []string{"-rf", oldest}}); err != nil {
		return result, &RotationError{Op: OpDelete, Path: oldest, Err: err}
	}

	// Strictly descending so no generation is overwritten before it has moved.
	for i := depth; i > 1; i-- {
		src, dst := gen(i-1), gen(i)
		ok, err := s.exists(src)
		if err != nil {
			return result, &RotationError{Op: OpShift, Path: src, Err: err}
		}
		if !ok {
			continue
		}
		if _, err := s.shell.Run(ctx, shell.Command{Name: "mv", Args: []string{src, dst}}); err != nil {
			return result, &RotationError{Op: OpShift, Path: src, Err: err}
		}
		result.Shifted++
	}

	current := filepath.Join(root, models.CurrentDir)
	newest := gen(1)
	if _, err := s.shell.Run(ctx, shell.Command{Name: "cp", Args: []string{"-al", current, newest}}); err != nil {
		return result, &RotationError{Op: OpClone, Path: newest, Err: err}
	}
	result.Created = newest
	result.Duration = time.Since(start)

	s.logger.Info().
		Str("frequency", frequency).
		Bool("deleted_oldest", result.Deleted).
		Int("shifted", result.Shifted).
		Str("created", result.Created).
		Dur("duration", result.Duration).
		Msg("snapshot rotation completed")

	return result, nil
}

func (s *Impl) exists(path string) (bool, error) {
	ok, err := afero.Exists(s.fs, path)
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", path, err)
	}
	return ok, nil
}

// List returns the generations on disk for every frequency in the SNAPSHOTS
// table, ordered by frequency name and then newest first.
func (s *Impl) List(cfg models.BackupConfig) ([]models.Generation, error) {
	root, err := config.Require(models.KeyEncryptedMountpoint, cfg.EncryptedMountpoint)
	if err != nil {
		return nil, err
	}
	table, err := config.Require(models.KeySnapshots, cfg.Snapshots)
	if err != nil {
		return nil, err
	}
	depths, err := ParseDepths(table)
	if err != nil {
		return nil, err
	}

	entries, err := afero.ReadDir(s.fs, root)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", root, err)
	}

	generations := []models.Generation{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		dot := strings.LastIndex(name, ".")
		if dot <= 0 {
			continue
		}
		frequency := name[:dot]
		if _, ok := depths[frequency]; !ok {
			continue
		}
		index, err := strconv.Atoi(name[dot+1:])
		if err != nil || index < 1 {
			continue
		}
		generations = append(generations, models.Generation{
			Frequency: frequency,
			Index:     index,
			Path:      filepath.Join(root, name),
			ModTime:   entry.ModTime(),
		})
	}

	sort.Slice(generations, func(i, j int) bool {
		if generations[i].Frequency != generations[j].Frequency {
			return generations[i].Frequency < generations[j].Frequency
		}
		return generations[i].Index < generations[j].Index
	})

	return generations, nil
}
