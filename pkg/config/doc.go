// Package config provides configuration management for quotaguard.
//
// This package handles loading, validating, and watching configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("quotaguard.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("quotaguard.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention QUOTAGUARD_SECTION_FIELD.
// For example:
//
//   - QUOTAGUARD_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - QUOTAGUARD_SERVICES_FACE_PER_MINUTE overrides services.face.per_minute
//   - QUOTAGUARD_STORAGE_BACKEND overrides storage.backend
//
// Service overrides only apply to service types already declared in the file.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Values from YAML file
//  2. Default values for fields left empty (defined in defaults.go)
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Hot Reload
//
// A Watcher observes the configuration file with fsnotify and invokes a
// callback with the freshly loaded Config after a debounce interval. Invalid
// files are logged and ignored; the previous configuration stays in effect.
//
// # Example Configuration
//
//	services:
//	  face:
//	    per_minute: 20
//	    per_month: 30000
//
//	storage:
//	  backend: "sqlite"
//	  sqlite:
//	    path: "data/usage.db"
//
//	flush:
//	  schedule: "*/15 * * * *"
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
package config
