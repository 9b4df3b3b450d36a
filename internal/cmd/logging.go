package cmd

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/boozedog/loginflow/internal/host"
)

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLogger writes colored logs to w. When buf is non-nil records are also
// captured for /api/log.
func newLogger(w io.Writer, level slog.Leveler, buf *host.LogBuffer) *slog.Logger {
	var h slog.Handler = tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	})
	if buf != nil {
		h = host.NewLogHandler(h, buf)
	}
	return slog.New(h)
}
