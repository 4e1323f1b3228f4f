// Package config loads, normalizes, and validates holocap configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), loads an optional .env file, reads TOML files, and honours
// environment fallbacks such as HOLOCAP_DEVICE_HOST. The Config type
// centralizes every knob the daemon and CLI need: where recordings live, how
// to reach the device, which streams to capture, and how the synchronization
// engine pairs timestamps.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical stream names, and clear validation errors.
package config
