package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	appEnvVar              = "APP_ENV"
	environmentDevelopment = "development"
	environmentProduction  = "production"
	environmentStaging     = "staging"
)

// DefaultConfigPath is used when no -config flag is supplied.
const DefaultConfigPath = "config/config.yml"

var environmentAliases = map[string]string{
	"prod":        environmentProduction,
	"producation": environmentProduction,
	"stag":        environmentStaging,
	"stagging":    environmentStaging,
	"dev":         environmentDevelopment,
}

// getAppEnvironment reads the application environment from APP_ENV and
// defaults to development when no value is provided.
func getAppEnvironment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv(appEnvVar)))
	if env == "" {
		return environmentDevelopment
	}
	if canonical, ok := environmentAliases[env]; ok {
		return canonical
	}
	return env
}

// AppEnvironment exposes the current application environment as configured
// through the APP_ENV environment variable, normalised with the same alias
// rules used to pick environment specific files.
func AppEnvironment() string {
	return getAppEnvironment()
}

// ResolvePath selects config/config.<env>.yml when the caller asked for the
// default file and an environment specific variant exists next to it.
// Explicit paths are returned untouched.
func ResolvePath(path string) string {
	if path == "" {
		path = DefaultConfigPath
	}
	if path != DefaultConfigPath {
		return path
	}

	ext := filepath.Ext(path)
	envPath := fmt.Sprintf("%s.%s%s", strings.TrimSuffix(path, ext), getAppEnvironment(), ext)
	if _, err := os.Stat(envPath); err == nil {
		return envPath
	}
	return path
}
