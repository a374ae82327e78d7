// Package config loads, normalizes, and validates registrar configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads optional .env files, and honours
// environment fallbacks such as DB_PASSWORD and NOCODB_API_TOKEN. The Config
// type centralizes every knob the CLI needs: the relational record source, the
// NocoDB sync target, the grade point table, document text, and batch/sync
// tuning.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
