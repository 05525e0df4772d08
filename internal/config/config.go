package config

import (
	"fmt"
	"time"
)

const DefaultTypingDebounce = 3 * time.Second

type Config struct {
	DatabaseDSN    string
	ServerAddr     string
	AllowedOrigins []string
	// TypingDebounce is the window after the last typing signal before a
	// stop-typing event is synthesized.
	TypingDebounce time.Duration
}

func NewConfig(serverAddr, databaseDSN string, allowedOrigins []string, typingDebounce time.Duration) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if typingDebounce < 0 {
		return nil, fmt.Errorf("typing debounce cannot be negative")
	}
	if typingDebounce == 0 {
		typingDebounce = DefaultTypingDebounce
	}

	return &Config{
		DatabaseDSN:    databaseDSN,
		ServerAddr:     serverAddr,
		AllowedOrigins: allowedOrigins,
		TypingDebounce: typingDebounce,
	}, nil
}
