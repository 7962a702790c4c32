// Package config loads, normalizes, and validates clipshelf configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, overlays an optional .env file, and honours
// environment fallbacks such as CLIPSHELF_ADMIN_PASSWORD. The Config type
// centralizes every knob the server and CLI need, so the metadata driver,
// object storage backend and administrator credential are discovered in one
// pass and injected into each component.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical backend names, and clear validation errors.
package config
