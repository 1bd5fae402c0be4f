package sl

import (
	"log/slog"
	"strings"
)

// Err wraps an error into a slog attribute.
func Err(err error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// Module tags a logger with the component it belongs to.
func Module(name string) slog.Attr {
	return slog.String("module", name)
}

// Secret logs a sensitive value with everything but the last four characters
// masked.
func Secret(key, value string) slog.Attr {
	masked := "****"
	if n := len(value); n > 4 {
		masked = strings.Repeat("*", n-4) + value[n-4:]
	}
	return slog.String(key, masked)
}
