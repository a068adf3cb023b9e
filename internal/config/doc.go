// Package config implements layered configuration for the satlink commands.
//
// Values are resolved in order: baseline Defaults(), an optional YAML file
// (satlink.yaml or --config), then SATLINK_* environment variables. The merged
// result is validated before any component sees it.
package config
