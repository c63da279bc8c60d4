// Package config provides configuration management for intercept.
//
// Configuration is read from a YAML file, overlaid onto built-in defaults,
// then overridden by INTERCEPT_* environment variables and finally validated.
// Command-line flags are applied by the CLI on top of the returned Config.
//
// # Loading
//
//	cfg, err := config.LoadConfigWithEnvOverrides("intercept.yaml")
//	if err != nil {
//	    return err
//	}
//
// Without a file, Default returns a fully populated configuration:
//
//	cfg := config.Default()
//	config.ApplyEnvOverrides(cfg)
//
// # Environment Variables
//
// Overrides follow the naming convention INTERCEPT_SECTION_FIELD, for
// example INTERCEPT_ENGINE_WORKERS or INTERCEPT_OBSERVE_SCHEDULE. The current
// environment tag matched against rule environments is read from
// INTERCEPT_ENV.
package config
