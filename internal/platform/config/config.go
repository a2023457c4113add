package config

import (
	"fmt"
	"os"
)

// Server captures process configuration. It is built once at startup and
// passed by reference into constructors; nothing reads the environment
// after FromEnv returns.
type Server struct {
	Addr        string
	DatabaseURL string
	Secret      string
	AllowOrigin string
}

// FromEnv builds a Server config from environment variables so main stays
// lean. The secret and database URL have no defaults; running without them
// is a startup error, not a degraded mode.
func FromEnv() (Server, error) {
	addr := os.Getenv("TALLY_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return Server{}, fmt.Errorf("DATABASE_URL is required")
	}

	secret := os.Getenv("TALLY_SECRET")
	if secret == "" {
		return Server{}, fmt.Errorf("TALLY_SECRET is required")
	}

	return Server{
		Addr:        addr,
		DatabaseURL: databaseURL,
		Secret:      secret,
		AllowOrigin: os.Getenv("ALLOW_ORIGIN"),
	}, nil
}
