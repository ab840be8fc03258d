// Package config loads, validates, and defaults the TOML configuration for
// mediacopier: content source paths, order API connection and resilience
// tuning, default copy rules per product type, runner limits, notifications,
// and logging.
package config
