package snapshot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fgeck/snapcron/internal/config"
	"github.com/fgeck/snapcron/internal/models"
)

// ErrInvalidFrequency is returned when a tier is unknown, has a non-positive depth,
// or is not usable as a directory name.
var ErrInvalidFrequency = errors.New("invalid snapshot frequency")

// ParseDepths parses a SNAPSHOTS value such as "hourly=24,daily=7".
// Later pairs for the same frequency win. Counts are returned as written,
// including zero or negative ones.
func ParseDepths(value string) (map[string]int, error) {
	depths := map[string]int{}
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, raw, ok := strings.Cut(pair, "=")
		key, raw = strings.TrimSpace(key), strings.TrimSpace(raw)
		if !ok || key == "" {
			return nil, &config.InvalidDirectiveError{
				Key: models.KeySnapshots, Value: value,
				Reason: fmt.Sprintf("entry %q is not frequency=count", pair),
			}
		}
		count, err := strconv.Atoi(raw)
		if err != nil {
			return nil, &config.InvalidDirectiveError{
				Key: models.KeySnapshots, Value: value,
				Reason: fmt.Sprintf("count %q for %s is not an integer", raw, key),
			}
		}
		depths[key] = count
	}
	return depths, nil
}

// Depth looks up the generation count for frequency in the configured table.
func Depth(cfg models.BackupConfig, frequency string) (int, error) {
	if err := validFrequencyName(frequency); err != nil {
		return 0, err
	}

	table, err := config.Require(models.KeySnapshots, cfg.Snapshots)
	if err != nil {
		return 0, err
	}
	depths, err := ParseDepths(table)
	if err != nil {
		return 0, err
	}

	count, ok := depths[frequency]
	if !ok {
		return 0, fmt.Errorf("%w: %q is not listed in %s", ErrInvalidFrequency, frequency, models.KeySnapshots)
	}
	if count <= 0 {
		return 0, fmt.Errorf("%w: %q has %d copies in %s", ErrInvalidFrequency, frequency, count, models.KeySnapshots)
	}
	return count, nil
}

func validFrequencyName(frequency string) error {
	switch {
	case frequency == "", frequency == ".", frequency == "..":
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, frequency)
	case frequency == models.CurrentDir:
		return fmt.Errorf("%w: %q is reserved for the live tree", ErrInvalidFrequency, frequency)
	case strings.ContainsAny(frequency, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidFrequency, frequency)
	}
	return nil
}
