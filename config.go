package crann

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the environment-driven configuration of a root container.
type Config struct {
	// ImplicitBinding mirrors WithImplicitBinding (CRANN_IMPLICIT_BINDING).
	ImplicitBinding bool
	// LogLevel is one of debug, info, warn, error (CRANN_LOG_LEVEL).
	LogLevel string
	// LogFormat is "console" or "json" (CRANN_LOG_FORMAT).
	LogFormat string
	// Logging enables the zap logger at all (CRANN_LOGGING).
	Logging bool
}

// LoadConfig reads .env files (if present) and populates a Config from
// environment variables.
// Call once at bootstrap, before InitRoot:
//
//	cfg := crann.LoadConfig()
//	root, err := crann.InitRoot(cfg.Options()...)
func LoadConfig(envFiles ...string) Config {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// Non-fatal: .env may not exist in production
	_ = godotenv.Load(files...)

	return Config{
		ImplicitBinding: envBool("CRANN_IMPLICIT_BINDING", true),
		LogLevel:        env("CRANN_LOG_LEVEL", "info"),
		LogFormat:       env("CRANN_LOG_FORMAT", "console"),
		Logging:         envBool("CRANN_LOGGING", false),
	}
}

// Options converts the configuration into container options.
func (c Config) Options() []Option {
	opts := []Option{WithImplicitBinding(c.ImplicitBinding)}
	if c.Logging {
		opts = append(opts, WithLogger(NewLogger(c.LogLevel, c.LogFormat)))
	}
	return opts
}

func env(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
