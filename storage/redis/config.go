package redis

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	PoolSize     int
	MinIdleConns int

	// ResetProgressOnDeath also drops level, gold and experience on death.
	ResetProgressOnDeath bool
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:                  "redis://localhost:6379",
		PoolSize:             10,
		MinIdleConns:         2,
		ResetProgressOnDeath: true,
	}
}
