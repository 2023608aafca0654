package httpapi

// maxBodyBytes controls the maximum allowed request body size for JSON
// endpoints. Default is 1 MiB.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// runKeepAlive is the keep_alive sent when loading a model via the bulk run
// endpoint. Stop always sends "0".
var runKeepAlive = "5m"

// SetRunKeepAlive configures the keep-alive duration for run operations.
func SetRunKeepAlive(v string) {
	if v == "" {
		runKeepAlive = "5m"
		return
	}
	runKeepAlive = v
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
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
