// Package config loads command settings from DICECORE_* environment
// variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Prefix is the namespace of every dicecore environment variable.
const Prefix = "DICECORE_"

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseEnvFrom loads configuration from the given variables instead of the
// process environment.
func ParseEnvFrom(target any, environ map[string]string) error {
	if err := env.ParseWithOptions(target, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
