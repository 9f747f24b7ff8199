package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnv returns the named variable, or defaultValue when unset or empty.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetIntEnv parses the named variable as an integer. Unset, empty, and
// unparsable values all fall back to defaultValue.
func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// GetDurationEnv parses the named variable in time.ParseDuration syntax
// ("500ms", "2m"). Unset, empty, and unparsable values fall back to
// defaultValue.
func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetSecretFile reads a secret from a file path, trimming surrounding
// whitespace. Works with Docker secrets (/run/secrets/) and K8s secrets
// (mounted volumes). Missing or unreadable files yield "".
func GetSecretFile(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// GetSecretEnv resolves a secret that may arrive either as a mounted file or
// as a plain variable. The file named by fileKey wins when it is set and
// readable; plainKey covers development setups without secret mounts.
func GetSecretEnv(fileKey, plainKey string) string {
	if secret := GetSecretFile(GetEnv(fileKey, "")); secret != "" {
		return secret
	}
	return GetEnv(plainKey, "")
}
