package httpapi

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// zlog is the structured logger used by the HTTP layer. Disabled until SetLogger.
var zlog = zerolog.Nop()

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = l }

// parseLevel maps a level name to a zerolog level. "off" disables logging,
// "1" is the legacy spelling of debug; unknown names fall back to info.
func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "disabled":
		return zerolog.Disabled
	case "1":
		return zerolog.DebugLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// requestLogLevel returns the level for one request: ?log= or X-Log-Level
// override the logger's configured level.
func requestLogLevel(r *http.Request) zerolog.Level {
	if v := r.URL.Query().Get("log"); v != "" {
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return zlog.GetLevel()
}

func requestLogger(r *http.Request) zerolog.Logger {
	return zlog.Level(requestLogLevel(r)).With().Str("path", r.URL.Path).Logger()
}
