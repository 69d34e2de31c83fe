// Package config provides user configuration management for sockpacket.
//
// The configuration file holds listener defaults for the CLI: network, listen
// address, wire framing (sentinels, charset, payload codec, buffer cap),
// datagram peer eviction, log level, capture directory and mDNS
// advertisement. Command-line flags override file values.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/sockpacket/config.yaml or $HOME/.config/sockpacket/config.yaml
//   - macOS: $HOME/.config/sockpacket/config.yaml
//   - Windows: %LOCALAPPDATA%\sockpacket\config.yaml
//
// An explicit path ending in .toml is read and written as TOML instead.
//
// # Example
//
//	version: 1
//	mode: udp
//	host: 0.0.0.0
//	port: 7171
//	framing:
//	  starts_with: "-!@@!-"
//	  ends_with: "-@!!@-"
//	  encoding: utf8
//	  codec: json
//	datagram:
//	  peer_idle_timeout: 5m
//
// # Thread Safety
//
// Writes are serialized by a package mutex and performed atomically through a
// temporary file and rename.
package config
