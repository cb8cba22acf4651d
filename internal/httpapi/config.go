package httpapi

import "time"

// maxBodyBytes controls the maximum allowed size of a JSON request body and of
// the prompt message on a socket session.
// Default is 1 MiB.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// generateTimeout bounds a single generation. Zero means no limit; a stalled
// model then stalls the request.
var generateTimeout = int64(0) // seconds

// SetGenerateTimeoutSeconds sets the generation timeout in seconds (0 disables).
func SetGenerateTimeoutSeconds(sec int64) {
	if sec < 0 {
		sec = 0
	}
	generateTimeout = sec
}

// wsWriteTimeout bounds each fragment write on a socket session.
var wsWriteTimeout = 10 * time.Second

// SetWSWriteTimeout sets the per-message write deadline (<=0 restores the default).
func SetWSWriteTimeout(d time.Duration) {
	if d <= 0 {
		d = 10 * time.Second
	}
	wsWriteTimeout = d
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added and
// socket upgrades only accept same-origin requests.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}
