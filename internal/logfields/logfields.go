package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyTarget     = "target"
	KeyConfigPath = "config_path"
	KeyPath       = "path"
	KeySourceKey  = "source_key"
	KeyURL        = "url"
	KeyTemplate   = "template"
	KeyCommand    = "command"
	KeyReturnCode = "return_code"
	KeyIndex      = "loop_index"
	KeyStage      = "stage"
	KeyFactory    = "factory"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Target(name string) slog.Attr     { return slog.String(KeyTarget, name) }
func ConfigPath(p string) slog.Attr    { return slog.String(KeyConfigPath, p) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func SourceKey(k string) slog.Attr     { return slog.String(KeySourceKey, k) }
func URL(u string) slog.Attr           { return slog.String(KeyURL, u) }
func Template(t string) slog.Attr      { return slog.String(KeyTemplate, t) }
func Command(c string) slog.Attr       { return slog.String(KeyCommand, c) }
func ReturnCode(code int) slog.Attr    { return slog.Int(KeyReturnCode, code) }
func Index(i int) slog.Attr            { return slog.Int(KeyIndex, i) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func Factory(name string) slog.Attr    { return slog.String(KeyFactory, name) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
