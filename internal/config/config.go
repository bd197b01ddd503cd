// Package config provides configuration management for the client.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds everything the room client needs to reach the taskmate
// backend.
type Config struct {
	// APIBaseURL is the REST base URL, e.g. https://api.taskmate.dev
	APIBaseURL string
	// SocketURL is the websocket endpoint carrying room events.
	SocketURL string
	// UserID and UserName identify the viewer; sent in the socket
	// handshake and on join requests.
	UserID   string
	UserName string
	// RequestTimeout bounds every REST call.
	RequestTimeout time.Duration
	// ReconnectMaxAttempts caps socket reconnection attempts per outage
	// before live updates are reported as down for good.
	ReconnectMaxAttempts uint64
	// Debug switches the logger to development mode.
	Debug bool
}

// Load reads configuration from environment variables with defaults
// suitable for local development.
func Load() Config {
	return Config{
		APIBaseURL:           getEnv("TASKMATE_API_URL", "http://localhost:4000"),
		SocketURL:            getEnv("TASKMATE_SOCKET_URL", "ws://localhost:4000/ws"),
		UserID:               getEnv("TASKMATE_USER_ID", ""),
		UserName:             getEnv("TASKMATE_USER_NAME", ""),
		RequestTimeout:       getEnvDuration("TASKMATE_REQUEST_TIMEOUT_SECONDS", 10*time.Second),
		ReconnectMaxAttempts: uint64(getEnvInt("TASKMATE_RECONNECT_MAX_ATTEMPTS", 8)),
		Debug:                getEnvBool("TASKMATE_DEBUG", false),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	n := getEnvInt(key, -1)
	if n <= 0 {
		return defaultValue
	}
	return time.Duration(n) * time.Second
}
