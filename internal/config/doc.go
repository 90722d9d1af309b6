// Package config loads coven-research configuration from YAML or TOML files.
//
// # Configuration File
//
// The file is looked up in this order:
//
//  1. --config flag
//  2. $COVEN_RESEARCH_CONFIG
//  3. $XDG_CONFIG_HOME/coven-research/config.yaml (or config.toml)
//  4. ~/.config/coven-research/config.yaml
//
// A missing file at the default location is not an error; Default() is used.
//
// # Example
//
//	backend:
//	  base_url: "http://localhost:8000"
//	  timeout: "1m"          # clarification call only
//	  concurrency: 2
//
//	research:
//	  effort: "medium"       # low|medium|high, or quick|balanced|deep
//	  max_frame_bytes: 16777216
//
//	archive:
//	  enabled: true
//	  path: "~/.local/share/coven-research/sessions.db"
//
//	logging:
//	  level: "info"          # debug|info|warn|error
//	  format: "text"         # text|json
//
// Files ending in .toml use the same keys in TOML tables.
//
// # Environment Variables
//
// Values may reference environment variables with ${VAR_NAME}; unset
// variables expand to the empty string. $COVEN_RESEARCH_BACKEND_URL, when
// set, replaces backend.base_url after the file is read.
//
// # Durations
//
// Durations use Go syntax ("30s", "5m"). A timeout of "0" disables the
// clarification deadline. The research stream itself is never time-limited.
package config
