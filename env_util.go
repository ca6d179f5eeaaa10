package taskboard

import "os"

// Environment variables consulted when explicit configuration is absent.
const (
	// EnvEndpoint names the board server base URL, e.g. "http://localhost:8887".
	EnvEndpoint = "TASKBOARD_ENDPOINT"

	// EnvToken names the bearer token presented on API calls.
	EnvToken = "TASKBOARD_TOKEN"
)

func GetEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value
}
