package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the daemon's logger. Output goes to stderr, and also to
// a rotated file when one is configured. Text output is coloured only on a
// terminal.
func (c *LogConfig) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	log := logrus.New()
	log.SetLevel(level)

	var out io.Writer = os.Stderr
	if c.File != "" {
		out = io.MultiWriter(os.Stderr, c.fileWriter())
	}
	log.SetOutput(out)

	switch strings.ToLower(c.Format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		tty := c.File == "" && term.IsTerminal(int(os.Stderr.Fd()))
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    true,
			ForceColors:      tty,
			DisableColors:    !tty,
			QuoteEmptyFields: true,
		})
	}

	return log, nil
}

func (c *LogConfig) fileWriter() io.Writer {
	return &lumberjack.Logger{
		Filename:   c.File,
		MaxSize:    c.MaxSize,    // megabytes
		MaxBackups: c.MaxBackups, // files
		MaxAge:     c.MaxAge,     // days
		Compress:   true,
	}
}
