package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyStage      = "stage"
	KeyPath       = "path"
	KeyPage       = "page"
	KeyGroup      = "group"
	KeyKind       = "kind"
	KeyCount      = "count"
	KeyOutput     = "output"
	KeyDurationMS = "duration_ms"
	KeyOutcome    = "outcome"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr    { return slog.String(KeyRunID, id) }
func Stage(name string) slog.Attr  { return slog.String(KeyStage, name) }
func Path(p string) slog.Attr      { return slog.String(KeyPath, p) }
func Page(id string) slog.Attr     { return slog.String(KeyPage, id) }
func Group(g string) slog.Attr     { return slog.String(KeyGroup, g) }
func Kind(k string) slog.Attr      { return slog.String(KeyKind, k) }
func Count(n int) slog.Attr        { return slog.Int(KeyCount, n) }
func Output(dir string) slog.Attr  { return slog.String(KeyOutput, dir) }
func Outcome(o string) slog.Attr   { return slog.String(KeyOutcome, o) }
func DurationMS(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000.0)
}
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
