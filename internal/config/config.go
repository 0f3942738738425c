package config

import "os"

// Config is read from the environment (a .env file is loaded by cmd/server
// before this runs). All keys share the CHAMELEON_ prefix.
type Config struct {
	Addr        string // CHAMELEON_ADDR
	TopicsPath  string // CHAMELEON_TOPICS
	DatabaseURL string // CHAMELEON_DATABASE_URL, empty selects the in-memory store
	LogEnv      string // CHAMELEON_LOG_ENV, "dev" or "prod"
}

func Load() Config {
	return Config{
		Addr:        getenv("CHAMELEON_ADDR", ":8080"),
		TopicsPath:  getenv("CHAMELEON_TOPICS", "chameleon_topics.json"),
		DatabaseURL: os.Getenv("CHAMELEON_DATABASE_URL"),
		LogEnv:      getenv("CHAMELEON_LOG_ENV", "dev"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
