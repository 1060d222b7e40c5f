// Package logging builds the process logger: a console writer plus the
// optional append-only LOG_FILE sink.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// ConsoleTimeFormat is used for the human-readable console output.
const ConsoleTimeFormat = "15:04:05"

// Console returns the console writer. With jsonOutput the events are written
// unchanged as JSON lines.
func Console(out io.Writer, jsonOutput bool) io.Writer {
	if jsonOutput {
		return out
	}
	w := zerolog.ConsoleWriter{Out: out, TimeFormat: ConsoleTimeFormat}
	w.FormatLevel = func(i interface{}) string {
		if s, ok := i.(string); ok {
			return strings.ToUpper(s)
		}
		return ""
	}
	return w
}

// FileWriter formats events as "timestamp - LEVEL - message" followed by the
// structured fields.
func FileWriter(out io.Writer) zerolog.ConsoleWriter {
	w := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    true,
		PartsOrder: []string{zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName},
	}
	w.FormatTimestamp = func(i interface{}) string {
		return fmt.Sprintf("%v -", i)
	}
	w.FormatLevel = func(i interface{}) string {
		if s, ok := i.(string); ok {
			return strings.ToUpper(s) + " -"
		}
		return "??? -"
	}
	return w
}

// OpenFile opens path for appending, creating it if needed.
func OpenFile(fs afero.Fs, path string) (afero.File, error) {
	f, err := fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return f, nil
}

// New returns a logger writing to console and, if logFile is set, to the log
// file as well. The returned close function releases the file.
func New(fs afero.Fs, console io.Writer, logFile string) (zerolog.Logger, func() error, error) {
	if logFile == "" {
		return zerolog.New(console).With().Timestamp().Logger(), func() error { return nil }, nil
	}

	f, err := OpenFile(fs, logFile)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	w := zerolog.MultiLevelWriter(console, FileWriter(f))
	return zerolog.New(w).With().Timestamp().Logger(), f.Close, nil
}
