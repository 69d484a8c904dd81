// Package logger wraps logrus behind a small package-level API so every
// component logs through one configured instance.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Logger is the global log instance.
var Logger *logrus.Logger

// Config holds the log settings.
type Config struct {
	// Level is one of debug, info, warn, error, fatal, panic.
	Level string `json:"level"`
	// Format is json or text.
	Format string `json:"format"`
	// Output is console, file or both.
	Output string `json:"output"`
	// FilePath is the log file location for file/both output.
	FilePath string `json:"file_path"`
}

// DefaultConfig returns the settings used when Init receives nil.
func DefaultConfig() *Config {
	return &Config{
		Level:    "info",
		Format:   "text",
		Output:   "console",
		FilePath: "logs/librarian.log",
	}
}

// Init configures the global logger and redirects gin's writers to it.
func Init(config *Config) error {
	if config == nil {
		config = DefaultConfig()
	}

	Logger = logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
		Logger.Warnf("invalid log level %q, falling back to info", config.Level)
	}
	Logger.SetLevel(level)

	switch config.Format {
	case "json":
		Logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	default:
		Logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	if err := setupOutput(config); err != nil {
		return err
	}

	ginWriter := &ginLogWriter{logger: Logger}
	gin.DefaultWriter = ginWriter
	gin.DefaultErrorWriter = ginWriter

	return nil
}

func setupOutput(config *Config) error {
	switch config.Output {
	case "file":
		file, err := openLogFile(config.FilePath)
		if err != nil {
			return err
		}
		Logger.SetOutput(file)
	case "both":
		file, err := openLogFile(config.FilePath)
		if err != nil {
			return err
		}
		Logger.SetOutput(io.MultiWriter(os.Stdout, file))
	default:
		Logger.SetOutput(os.Stdout)
	}
	return nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

// ginLogWriter funnels gin's own output into the configured logger.
type ginLogWriter struct {
	logger *logrus.Logger
}

func (w *ginLogWriter) Write(p []byte) (n int, err error) {
	w.logger.Info(string(p))
	return len(p), nil
}

// GetLogger returns the global instance, initializing it with defaults
// if Init has not run yet.
func GetLogger() *logrus.Logger {
	if Logger == nil {
		if err := Init(nil); err != nil {
			return logrus.StandardLogger()
		}
	}
	return Logger
}

// Debug logs at debug level.
func Debug(args ...interface{}) {
	GetLogger().Debug(args...)
}

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...interface{}) {
	GetLogger().Debugf(format, args...)
}

// Info logs at info level.
func Info(args ...interface{}) {
	GetLogger().Info(args...)
}

// Infof logs a formatted message at info level.
func Infof(format string, args ...interface{}) {
	GetLogger().Infof(format, args...)
}

// Warn logs at warn level.
func Warn(args ...interface{}) {
	GetLogger().Warn(args...)
}

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...interface{}) {
	GetLogger().Warnf(format, args...)
}

// Error logs at error level.
func Error(args ...interface{}) {
	GetLogger().Error(args...)
}

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...interface{}) {
	GetLogger().Errorf(format, args...)
}

// Fatalf logs a formatted message at fatal level and exits.
func Fatalf(format string, args ...interface{}) {
	GetLogger().Fatalf(format, args...)
}

// WithFields returns an entry carrying structured fields.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return GetLogger().WithFields(fields)
}
