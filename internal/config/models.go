package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/muurk/sockpacket/internal/logging"
	"github.com/muurk/sockpacket/internal/packet"
	"github.com/muurk/sockpacket/internal/transport"
)

// CurrentVersion is the only config file version understood.
const CurrentVersion = 1

// Default listen settings
const (
	DefaultMode = "tcp"
	DefaultHost = "127.0.0.1"
	DefaultPort = 7171
)

// Config is the sockpacket configuration file.
type Config struct {
	Version    int      `yaml:"version" toml:"version"`
	Mode       string   `yaml:"mode" toml:"mode"` // Network, e.g. tcp, udp, ws, quic, unix
	Host       string   `yaml:"host" toml:"host"` // Host, or socket path for unix networks
	Port       int      `yaml:"port" toml:"port"`
	Framing    Framing  `yaml:"framing" toml:"framing"`
	Datagram   Datagram `yaml:"datagram,omitempty" toml:"datagram,omitempty"`
	LogLevel   string   `yaml:"log_level,omitempty" toml:"log_level,omitempty"`
	CaptureDir string   `yaml:"capture_dir,omitempty" toml:"capture_dir,omitempty"`
	Advertise  bool     `yaml:"advertise" toml:"advertise"`        // Announce the listener via mDNS
	Instance   string   `yaml:"instance,omitempty" toml:"instance,omitempty"` // mDNS instance name
}

// Framing holds the wire format settings.
type Framing struct {
	StartsWith string `yaml:"starts_with" toml:"starts_with"`
	EndsWith   string `yaml:"ends_with" toml:"ends_with"`
	Encoding   string `yaml:"encoding" toml:"encoding"`
	Codec      string `yaml:"codec" toml:"codec"`                                 // identity, json or yaml
	MaxBuffer  int    `yaml:"max_buffer,omitempty" toml:"max_buffer,omitempty"` // Residual buffer cap in bytes (0 = unbounded)
}

// Datagram holds settings that only apply to datagram networks.
type Datagram struct {
	PeerIdleTimeout string `yaml:"peer_idle_timeout,omitempty" toml:"peer_idle_timeout,omitempty"` // e.g. "5m" (empty = never)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Mode:    DefaultMode,
		Host:    DefaultHost,
		Port:    DefaultPort,
		Framing: Framing{
			StartsWith: packet.DefaultStart,
			EndsWith:   packet.DefaultEnd,
			Encoding:   packet.DefaultCharset,
			Codec:      "identity",
		},
	}
}

// Validate checks every field and returns all problems joined.
func (c *Config) Validate() error {
	var errs []error

	if c.Version != CurrentVersion {
		errs = append(errs, fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion))
	}
	if _, err := transport.ParseMode(c.Mode); err != nil {
		errs = append(errs, fmt.Errorf("mode: %w", err))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port out of range: %d", c.Port))
	}
	if d, err := c.Delimiter(); err != nil {
		errs = append(errs, fmt.Errorf("framing: %w", err))
	} else if d.Ambiguous() {
		logging.Warn("Identical start and end sentinels make framing ambiguous")
	}
	if _, _, err := packet.CodecByName(c.Framing.Codec); err != nil {
		errs = append(errs, fmt.Errorf("framing: %w", err))
	}
	if c.Framing.MaxBuffer < 0 {
		errs = append(errs, fmt.Errorf("framing: max_buffer must not be negative"))
	}
	if _, err := c.PeerIdleTimeout(); err != nil {
		errs = append(errs, fmt.Errorf("datagram: %w", err))
	}
	if c.LogLevel != "" {
		if _, err := logging.ParseLevel(c.LogLevel); err != nil {
			errs = append(errs, fmt.Errorf("log_level: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Delimiter builds the framing policy.
func (c *Config) Delimiter() (packet.Delimiter, error) {
	return packet.NewDelimiter(c.Framing.StartsWith, c.Framing.EndsWith, c.Framing.Encoding)
}

// PeerIdleTimeout parses datagram.peer_idle_timeout. Empty means never.
func (c *Config) PeerIdleTimeout() (time.Duration, error) {
	s := strings.TrimSpace(c.Datagram.PeerIdleTimeout)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid peer_idle_timeout %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("peer_idle_timeout must not be negative")
	}
	return d, nil
}

// TransportOptions converts the config into adapter options.
func (c *Config) TransportOptions() (transport.Options, error) {
	delim, err := c.Delimiter()
	if err != nil {
		return transport.Options{}, err
	}
	stringifier, parser, err := packet.CodecByName(c.Framing.Codec)
	if err != nil {
		return transport.Options{}, err
	}
	idle, err := c.PeerIdleTimeout()
	if err != nil {
		return transport.Options{}, err
	}

	return transport.Options{
		Mode:            c.Mode,
		Delimiter:       delim,
		Stringifier:     stringifier,
		Parser:          parser,
		MaxBuffer:       c.Framing.MaxBuffer,
		PeerIdleTimeout: idle,
	}, nil
}

// Address returns host:port, or the socket path for unix networks.
func (c *Config) Address() string {
	if strings.HasPrefix(strings.ToLower(c.Mode), "unix") {
		return c.Host
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
