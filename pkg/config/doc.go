// Package config loads the broker's process-wide settings: which tools
// are exposed, the dashboard bind spec, the debug/log-debug flags, and
// the Signal Manager's interrupt mode and double-tap window.
//
// Settings are read once at startup (§6's environment table) into an
// immutable Config value. An optional YAML file, named by --config,
// is applied first as a base layer; environment variables always win
// over it, matching the precedence cuemby-warren's manager config uses
// for its own file-plus-env layering.
package config
