// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package build

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

// RotatingLogWriter is a wrapper around the log writer that routes every
// subsystem logger to stdout and, once initialized, to a rotating log file.
type RotatingLogWriter struct {
	backend *btclog.Backend

	rotator *rotator.Rotator
	pipe    *io.PipeWriter

	subsystemLoggers map[string]btclog.Logger
	useLoggers       map[string]func(btclog.Logger)
}

// NewRotatingLogWriter creates a new file rotating log writer. The returned
// writer only writes to stdout until InitLogRotator is called.
func NewRotatingLogWriter() *RotatingLogWriter {
	w := &RotatingLogWriter{
		subsystemLoggers: make(map[string]btclog.Logger),
		useLoggers:       make(map[string]func(btclog.Logger)),
	}
	w.backend = btclog.NewBackend(w)
	return w
}

// Write writes the byte slice to stdout and the rotator, if present.
func (w *RotatingLogWriter) Write(b []byte) (int, error) {
	if LoggingType == LogTypeNone {
		return len(b), nil
	}
	os.Stdout.Write(b)
	if w.pipe != nil {
		w.pipe.Write(b)
	}
	return len(b), nil
}

// RegisterSubLogger creates the logger of a subsystem and hands it to the
// package's UseLogger function.
func (w *RotatingLogWriter) RegisterSubLogger(subsystem string,
	useLogger func(btclog.Logger)) btclog.Logger {

	logger := NewSubLogger(subsystem, w.backend.Logger)
	w.subsystemLoggers[subsystem] = logger
	w.useLoggers[subsystem] = useLogger
	if useLogger != nil {
		useLogger(logger)
	}
	return logger
}

// InitLogRotator initializes the log file rotator to write logs to logFile
// and create roll files in the same directory. It must be called before
// the package-global log rotator variables are used.
func (w *RotatingLogWriter) InitLogRotator(logFile string, maxLogFileSize,
	maxLogFiles int) error {

	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	r, err := rotator.New(
		logFile, int64(maxLogFileSize*1024), false, maxLogFiles,
	)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}

	pr, pw := io.Pipe()
	go r.Run(pr)

	w.rotator = r
	w.pipe = pw
	return nil
}

// Close closes the underlying log rotator if it has already been created.
func (w *RotatingLogWriter) Close() error {
	if w.rotator != nil {
		w.pipe.Close()
		return w.rotator.Close()
	}
	return nil
}

// SupportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func (w *RotatingLogWriter) SupportedSubsystems() []string {
	subsystems := make([]string, 0, len(w.subsystemLoggers))
	for subsysID := range w.subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}

	// Sort the subsystems for stable display.
	sort.Strings(subsystems)
	return subsystems
}

// SetLogLevel sets the logging level for provided subsystem. Invalid
// subsystems are ignored.
func (w *RotatingLogWriter) SetLogLevel(subsystemID string, logLevel string) {
	// Ignore invalid subsystems.
	logger, ok := w.subsystemLoggers[subsystemID]
	if !ok {
		return
	}

	// Defaults to info if the log level is invalid.
	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets the log level for all subsystem loggers to the passed
// level.
func (w *RotatingLogWriter) SetLogLevels(logLevel string) {
	for subsystemID := range w.subsystemLoggers {
		w.SetLogLevel(subsystemID, logLevel)
	}
}

// ParseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly. An appropriate error is returned if anything is
// invalid. The level is either a single level applied to every subsystem or
// a comma separated list of subsystem=level pairs.
func (w *RotatingLogWriter) ParseAndSetDebugLevels(level string) error {
	// When the specified string doesn't have any delimiters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(level, ",") && !strings.Contains(level, "=") {
		if !validLogLevel(level) {
			return fmt.Errorf("the specified debug level [%v] is "+
				"invalid", level)
		}
		w.SetLogLevels(level)
		return nil
	}

	// Split the specified string into subsystem/level pairs while
	// detecting issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(level, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return fmt.Errorf("the specified debug level contains "+
				"an invalid subsystem/level pair [%v]",
				logLevelPair)
		}

		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		if _, exists := w.subsystemLoggers[subsysID]; !exists {
			return fmt.Errorf("the specified subsystem [%v] is "+
				"invalid -- supported subsystems %v", subsysID,
				w.SupportedSubsystems())
		}
		if !validLogLevel(logLevel) {
			return fmt.Errorf("the specified debug level [%v] is "+
				"invalid", logLevel)
		}

		w.SetLogLevel(subsysID, logLevel)
	}

	return nil
}

func validLogLevel(logLevel string) bool {
	_, ok := btclog.LevelFromString(logLevel)
	return ok
}
