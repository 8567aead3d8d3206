// Package config handles application configuration loading and validation.
//
// Configuration is loaded from config.yml and validated using struct tags.
// Operational switches (raw-artifact retention, metrics address, NATS URL)
// can additionally be overridden from the environment or a .env file.
package config
