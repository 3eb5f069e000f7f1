// Package env loads service configuration from environment variables.
package env

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

var (
	defaultEnviron = os.Environ
	osEnviron      = defaultEnviron
)

// Parse fills target from the environment. Defaults live in envDefault
// struct tags.
func Parse(target any) error {
	return ParseWith(target, nil)
}

// ParseWith is Parse with an extra variable source layered over the
// process environment. Command-line flags are passed this way.
func ParseWith(target any, overrides map[string]string) error {
	if err := env.ParseWithOptions(target, env.Options{Environment: merged(overrides)}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func merged(overrides map[string]string) map[string]string {
	out := env.ToMap(osEnviron())
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
