package config

import (
	shellquote "github.com/kballard/go-shellquote"
)

// Args splits a directive value into an argument vector using POSIX shell
// quoting, so `-e "ssh -p 2222"` stays one argument. Unbalanced quotes are an
// *InvalidDirectiveError.
func Args(key, value string) ([]string, error) {
	args, err := shellquote.Split(value)
	if err != nil {
		return nil, &InvalidDirectiveError{Key: key, Value: value, Reason: err.Error()}
	}
	return args, nil
}
