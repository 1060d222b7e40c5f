// Package config provides parsing of the line-oriented rc file.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/fgeck/snapcron/internal/models"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// DefaultPath is where the config file is looked up when no path is given.
const DefaultPath = "~/.backuprc"

// EnvPrefix prefixes environment variables that override known directives,
// e.g. SNAPCRON_ENCFS_PASSWORD.
const EnvPrefix = "SNAPCRON"

// Parser handles configuration file parsing.
type Parser struct {
	envPrefix string
}

// NewParser creates a new configuration parser.
func NewParser() *Parser {
	return &Parser{envPrefix: EnvPrefix}
}

// LoadFile loads configuration from a file path. A leading "~" is expanded.
func (p *Parser) LoadFile(path string) (*models.BackupConfig, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expanding config path: %w", err)
	}

	f, err := os.Open(expanded) //nolint:gosec // path comes from the operator
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, expanded)
		}
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return p.parse(f)
}

// LoadReader loads configuration from a string (useful for testing).
func (p *Parser) LoadReader(content string) (*models.BackupConfig, error) {
	return p.parse(strings.NewReader(content))
}

func (p *Parser) parse(r io.Reader) (*models.BackupConfig, error) {
	cfg := &models.BackupConfig{
		FilePaths:  []string{},
		Directives: map[string]string{},
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if key, value, ok := strings.Cut(line, " "); ok {
			cfg.Directives[key] = value
			continue
		}
		cfg.FilePaths = append(cfg.FilePaths, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Keys are case-sensitive and read from the file verbatim. viper is only
	// asked for the SNAPCRON_<KEY> environment override.
	v := viper.New()
	v.SetEnvPrefix(p.envPrefix)
	resolve := func(key string) string {
		_ = v.BindEnv(key)
		if v.IsSet(key) {
			return v.GetString(key)
		}
		return cfg.Directives[key]
	}

	cfg.EncryptedMountpoint = resolve(models.KeyEncryptedMountpoint)
	cfg.DecryptedMountpoint = resolve(models.KeyDecryptedMountpoint)
	cfg.EncfsPassword = resolve(models.KeyEncfsPassword)
	cfg.RsyncFlags = resolve(models.KeyRsyncFlags)
	cfg.LogFile = resolve(models.KeyLogFile)
	cfg.Snapshots = resolve(models.KeySnapshots)
	cfg.PreMount = resolve(models.KeyPreMount)
	cfg.UnmountAtEnd = resolve(models.KeyUnmountAtEnd)

	if cfg.LogFile != "" {
		logFile, err := homedir.Expand(cfg.LogFile)
		if err != nil {
			return nil, fmt.Errorf("expanding %s: %w", models.KeyLogFile, err)
		}
		cfg.LogFile = logFile
	}

	return cfg, nil
}

// Validate checks that the directives every sync and rotation needs are present.
// Loading itself never requires them; this backs the validate command.
func Validate(cfg *models.BackupConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []error
	required := []struct{ key, value string }{
		{models.KeyEncryptedMountpoint, cfg.EncryptedMountpoint},
		{models.KeyDecryptedMountpoint, cfg.DecryptedMountpoint},
		{models.KeyEncfsPassword, cfg.EncfsPassword},
		{models.KeySnapshots, cfg.Snapshots},
	}
	for _, r := range required {
		if _, err := Require(r.key, r.value); err != nil {
			errs = append(errs, err)
		}
	}

	if len(cfg.FilePaths) == 0 {
		errs = append(errs, fmt.Errorf("no paths to back up"))
	}

	return errors.Join(errs...)
}
