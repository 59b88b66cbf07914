package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// newLogger logs to the console and to logs/rotatecli_<timestamp>.log.
func newLogger(level, runID string) (zerolog.Logger, *os.File, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("log level %q: %w", level, err)
	}
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return zerolog.Nop(), nil, err
	}
	logPath := filepath.Join("logs", fmt.Sprintf("rotatecli_%s.log", time.Now().Format("20060102_150405")))
	f, err := os.Create(logPath)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("create log: %w", err)
	}
	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	log := zerolog.New(zerolog.MultiLevelWriter(console, f)).
		Level(lvl).
		With().
		Timestamp().
		Str("run", runID).
		Logger()
	return log, f, nil
}
