package config

// Configuration key constants to prevent typos and enable autocomplete.
// Each key doubles as the environment variable that overrides it.
const (
	// Deployment location
	KeyWorkDir = "WORK_DIR"

	// Port defaults offered by the collector
	KeyHTTPPort  = "HTTP_PORT"
	KeyHTTPSPort = "HTTPS_PORT"

	// Remembered answers (never secrets)
	KeyTimezone     = "TIMEZONE"
	KeyLoginUser    = "LOGIN_USER"
	KeyProxyScheme  = "PROXY_SCHEME"
	KeyProxyAddress = "PROXY_ADDRESS"
	KeyShmSize      = "SHM_SIZE"

	// Behaviour
	KeyStrictness    = "STRICTNESS"
	KeySettleSeconds = "SETTLE_SECONDS"
	KeyLogLevel      = "LOG_LEVEL"
)

// Keys lists every key the tool reads, in file order
var Keys = []string{
	KeyWorkDir,
	KeyHTTPPort,
	KeyHTTPSPort,
	KeyTimezone,
	KeyLoginUser,
	KeyProxyScheme,
	KeyProxyAddress,
	KeyShmSize,
	KeyStrictness,
	KeySettleSeconds,
	KeyLogLevel,
}

// Default values for configuration keys
var Defaults = map[string]string{
	KeyHTTPPort:      "3010",
	KeyHTTPSPort:     "3011",
	KeyShmSize:       "1gb",
	KeyStrictness:    "basic",
	KeySettleSeconds: "5",
	KeyLogLevel:      "warn",
}
