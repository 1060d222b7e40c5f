package config

import (
	"errors"
	"fmt"
)

// ErrConfigNotFound is returned when the config file does not exist.
var ErrConfigNotFound = errors.New("config file not found")

// MissingDirectiveError reports a directive that an operation needs but the config lacks.
type MissingDirectiveError struct {
	Key string
}

func (e *MissingDirectiveError) Error() string {
	return fmt.Sprintf("%s is not configured", e.Key)
}

// InvalidDirectiveError reports a directive whose value cannot be interpreted.
type InvalidDirectiveError struct {
	Key    string
	Value  string
	Reason string
}

func (e *InvalidDirectiveError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Key, e.Value, e.Reason)
}

// Require returns value, or a *MissingDirectiveError naming key when value is empty.
func Require(key, value string) (string, error) {
	if value == "" {
		return "", &MissingDirectiveError{Key: key}
	}
	return value, nil
}
