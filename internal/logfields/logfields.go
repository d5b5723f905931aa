package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID    = "run_id"
	KeySource   = "source"
	KeyStatus   = "status"
	KeyTool     = "tool"
	KeyPath     = "path"
	KeyDuration = "duration"
	KeyError    = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr          { return slog.String(KeyRunID, id) }
func Source(rel string) slog.Attr        { return slog.String(KeySource, rel) }
func Status(s string) slog.Attr          { return slog.String(KeyStatus, s) }
func Tool(name string) slog.Attr         { return slog.String(KeyTool, name) }
func Path(p string) slog.Attr            { return slog.String(KeyPath, p) }
func Duration(d time.Duration) slog.Attr { return slog.Duration(KeyDuration, d) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
