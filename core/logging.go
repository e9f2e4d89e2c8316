package core

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the process logger shared by every subsystem.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = NewLogger(os.Stderr, log.InfoLevel)
	})
	return logger
}

// NewLogger builds a logger writing to w. Tests pass a buffer here.
func NewLogger(w io.Writer, level log.Level) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "Deferred 🎨 ",
	})
	l.SetLevel(level)
	return l
}

// SetLogLevel parses a level name ("debug", "info", ...) and applies it to the
// process logger. Unknown names leave the level unchanged.
func SetLogLevel(name string) {
	level, err := log.ParseLevel(name)
	if err != nil {
		Logger().Warn("unknown log level", "level", name)
		return
	}
	Logger().SetLevel(level)
}

func LogInfo(msg string, args ...interface{}) {
	Logger().Infof(msg, args...)
}
