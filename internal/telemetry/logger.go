package telemetry

import (
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

var (
	logLevel = &slog.LevelVar{}

	consoleHandler atomic.Pointer[slog.Handler]
)

func init() {
	SetLogOutput(os.Stderr)
}

// SetLogLevel sets the minimum level of the console logs.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}

// SetLogOutput redirects the console logs to w.
// Colors are enabled only when w is a terminal.
// It only affects the telemetry instances created afterwards.
func SetLogOutput(w io.Writer) {
	noColor := true

	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		w = colorable.NewColorable(f)
		noColor = false
	}

	var handler slog.Handler = tint.NewHandler(w, &tint.Options{
		Level:      logLevel,
		TimeFormat: time.StampMilli,
		NoColor:    noColor,
	})

	consoleHandler.Store(&handler)
}

func newConsoleLogger() *slog.Logger {
	return slog.New(*consoleHandler.Load())
}
