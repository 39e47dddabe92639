// Package config loads, normalizes, and validates SAM process configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SAM_API_TOKEN and SAM_NTFY_TOPIC. Paths left empty are derived from
// data_dir so a minimal file only needs to name the report workbook.
//
// User preferences edited from the UI are not part of this package; see
// internal/settings.
package config
