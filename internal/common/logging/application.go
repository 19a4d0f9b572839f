package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const RFC3339Milli = "2006-01-02T15:04:05.000Z07:00"

// Config defines the simulator's logging configuration.
type Config struct {
	// Defines configuration for console logging on stdout
	Console struct {
		// Log level, e.g. INFO, ERROR etc
		Level string `yaml:"level"`
		// Logging format, either text or json
		Format string `yaml:"format"`
	} `yaml:"console"`
	// Defines configuration for file logging
	File struct {
		// Whether file logging is enabled
		Enabled bool `yaml:"enabled"`
		// Log level, e.g. INFO, ERROR etc
		Level string `yaml:"level"`
		// The location of the logfile on disk
		LogFile string `yaml:"logfile"`
		// Maximum size in megabytes of the log file before it gets rotated
		MaxSizeMb int `yaml:"maxSizeMb"`
		// Maximum number of old log files to retain
		MaxBackups int `yaml:"maxBackups"`
	} `yaml:"file"`
}

// DefaultConfig returns console-only logging at INFO level.
func DefaultConfig() Config {
	c := Config{}
	c.Console.Level = "info"
	c.Console.Format = "text"
	return c
}

// MustConfigureApplicationLogging sets up logging suitable for an application.
// Note that this function will immediately shut down the application if it fails.
func MustConfigureApplicationLogging(config Config) {
	if err := ConfigureApplicationLogging(config); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error initializing logging: "+err.Error())
		os.Exit(1)
	}
}

// ConfigureApplicationLogging sets up the global logger from the given config,
// writing to the console and, if enabled, to a rotated log file.
func ConfigureApplicationLogging(config Config) error {
	zerolog.TimeFieldFormat = RFC3339Milli

	var writers []io.Writer

	consoleWriter, err := createConsoleWriter(config)
	if err != nil {
		return err
	}
	writers = append(writers, consoleWriter)

	if config.File.Enabled {
		fileWriter, err := createFileWriter(config)
		if err != nil {
			return err
		}
		writers = append(writers, fileWriter)
	}

	multiWriter := zerolog.MultiLevelWriter(writers...)
	logger := zerolog.New(multiWriter).With().Timestamp().Logger()

	ReplaceStdLogger(FromZerolog(logger))
	return nil
}

// FilteredLevelWriter wraps an io.Writer and only passes events at or above
// its configured level.
type FilteredLevelWriter struct {
	writer io.Writer
	level  zerolog.Level
}

func (w *FilteredLevelWriter) Write(p []byte) (int, error) {
	return w.writer.Write(p)
}

// WriteLevel implements zerolog.LevelWriter.
func (w *FilteredLevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level >= w.level {
		return w.writer.Write(p)
	}
	return len(p), nil
}

func createConsoleWriter(config Config) (*FilteredLevelWriter, error) {
	level, err := zerolog.ParseLevel(config.Console.Level)
	if err != nil {
		return nil, err
	}
	if config.Console.Format == "json" {
		return &FilteredLevelWriter{writer: os.Stdout, level: level}, nil
	}
	return &FilteredLevelWriter{
		writer: zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: RFC3339Milli, NoColor: true},
		level:  level,
	}, nil
}

func createFileWriter(config Config) (*FilteredLevelWriter, error) {
	level, err := zerolog.ParseLevel(config.File.Level)
	if err != nil {
		return nil, err
	}
	lumberjackLogger := &lumberjack.Logger{
		Filename:   config.File.LogFile,
		MaxSize:    config.File.MaxSizeMb,
		MaxBackups: config.File.MaxBackups,
	}
	return &FilteredLevelWriter{writer: lumberjackLogger, level: level}, nil
}
