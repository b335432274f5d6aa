package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"btcoracle/internal/config"
)

// New builds the process logger from configuration. Output rotates via
// lumberjack when a file target is configured.
func New(cfg config.LoggingConfig) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	switch cfg.Format {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
	default:
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}

	log.SetOutput(output(cfg))
	return log
}

func output(cfg config.LoggingConfig) io.Writer {
	switch cfg.Output {
	case "stderr":
		return os.Stderr
	case "file":
		if cfg.Filename == "" {
			return os.Stdout
		}
		return &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    defaultInt(cfg.MaxSizeMB, 100),
			MaxAge:     defaultInt(cfg.MaxAgeDays, 30),
			MaxBackups: defaultInt(cfg.MaxBackups, 10),
			Compress:   cfg.Compress,
		}
	default:
		return os.Stdout
	}
}

func defaultInt(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}
