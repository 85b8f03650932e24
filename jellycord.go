// Package jellycord provides embedded assets for the Jellycord daemon.
//
// The root package exists solely to embed [config.default.toml] via
// [DefaultConfigTOML]. The daemon writes this file to the data directory
// on first run so users start from a commented, working configuration.
package jellycord

import _ "embed"

// DefaultConfigTOML holds the raw bytes of config.default.toml, embedded at
// build time.
//
//go:embed config.default.toml
var DefaultConfigTOML []byte
