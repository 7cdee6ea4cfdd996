package config

import "errors"

var (
	// ErrConfigNotFound is returned when a configuration file does not exist.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidFormat is returned when a configuration file cannot be parsed.
	ErrInvalidFormat = errors.New("invalid config format")

	// ErrUnsupportedFormat is returned for unknown file extensions.
	ErrUnsupportedFormat = errors.New("unsupported config format")

	// ErrValidationFailed is returned when configuration validation fails.
	ErrValidationFailed = errors.New("config validation failed")

	// ErrMissingEnvVar is returned when a required environment variable is unset.
	ErrMissingEnvVar = errors.New("missing environment variable")
)
