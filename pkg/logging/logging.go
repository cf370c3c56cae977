// Package logging provides the subsystem log backend shared by the server
// and the command line tools.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// LogConfig configures a LogBackend.
type LogConfig struct {
	// LogFile enables a rotating log file in addition to Output.
	LogFile string
	// DebugLevel is either a single level ("debug") applied to every
	// subsystem, or a comma separated list of SUBSYS=level pairs with an
	// optional bare default level ("info,ROOM=debug,ENGN=trace").
	DebugLevel string
	// MaxLogFiles is the number of rotated files kept.
	MaxLogFiles int
	// MaxLogSizeKB is the size at which the log file is rotated.
	MaxLogSizeKB int64
	// Output receives every log line. Defaults to stdout.
	Output io.Writer
}

// LogBackend hands out subsystem loggers that share one output.
type LogBackend struct {
	backend *slog.Backend
	rotator *rotator.Rotator

	mtx          sync.Mutex
	defaultLevel slog.Level
	levels       map[string]slog.Level
	loggers      map[string]slog.Logger
}

// NewLogBackend creates a backend writing to cfg.Output and, when set, to a
// rotating cfg.LogFile.
func NewLogBackend(cfg LogConfig) (*LogBackend, error) {
	def, levels, err := ParseDebugLevel(cfg.DebugLevel)
	if err != nil {
		return nil, err
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	lb := &LogBackend{
		defaultLevel: def,
		levels:       levels,
		loggers:      make(map[string]slog.Logger),
	}

	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0700); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %v", err)
		}
		maxFiles := cfg.MaxLogFiles
		if maxFiles <= 0 {
			maxFiles = 3
		}
		sizeKB := cfg.MaxLogSizeKB
		if sizeKB <= 0 {
			sizeKB = 10 * 1024
		}
		r, err := rotator.New(cfg.LogFile, sizeKB, false, maxFiles)
		if err != nil {
			return nil, fmt.Errorf("failed to create file rotator: %v", err)
		}
		lb.rotator = r
		out = io.MultiWriter(out, r)
	}

	lb.backend = slog.NewBackend(out)
	return lb, nil
}

// Logger returns the logger of a subsystem, creating it on first use.
func (lb *LogBackend) Logger(subsystem string) slog.Logger {
	lb.mtx.Lock()
	defer lb.mtx.Unlock()

	if l, ok := lb.loggers[subsystem]; ok {
		return l
	}
	l := lb.backend.Logger(subsystem)
	l.SetLevel(lb.levelFor(subsystem))
	lb.loggers[subsystem] = l
	return l
}

func (lb *LogBackend) levelFor(subsystem string) slog.Level {
	if lvl, ok := lb.levels[subsystem]; ok {
		return lvl
	}
	return lb.defaultLevel
}

// SetLevels applies a new debug level string to every existing and
// future logger.
func (lb *LogBackend) SetLevels(debugLevel string) error {
	def, levels, err := ParseDebugLevel(debugLevel)
	if err != nil {
		return err
	}
	lb.mtx.Lock()
	defer lb.mtx.Unlock()
	lb.defaultLevel = def
	lb.levels = levels
	for name, l := range lb.loggers {
		l.SetLevel(lb.levelFor(name))
	}
	return nil
}

// Close flushes and closes the log file, if any.
func (lb *LogBackend) Close() error {
	if lb.rotator != nil {
		return lb.rotator.Close()
	}
	return nil
}

// ParseDebugLevel parses a debug level string. An empty string means
// info for everything.
func ParseDebugLevel(debugLevel string) (slog.Level, map[string]slog.Level, error) {
	def := slog.LevelInfo
	levels := make(map[string]slog.Level)

	for _, part := range strings.Split(debugLevel, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		subsys, lvlStr, pair := strings.Cut(part, "=")
		if !pair {
			lvl, ok := slog.LevelFromString(part)
			if !ok {
				return 0, nil, fmt.Errorf("invalid debug level %q", part)
			}
			def = lvl
			continue
		}
		subsys = strings.ToUpper(strings.TrimSpace(subsys))
		lvl, ok := slog.LevelFromString(strings.TrimSpace(lvlStr))
		if subsys == "" || !ok {
			return 0, nil, fmt.Errorf("invalid debug level pair %q", part)
		}
		levels[subsys] = lvl
	}
	return def, levels, nil
}
