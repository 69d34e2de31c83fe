package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/muurk/sockpacket/internal/config"
	"github.com/muurk/sockpacket/internal/packet"
	"github.com/muurk/sockpacket/internal/transport"
)

// framingFlags are the per-command overrides of the config file.
type framingFlags struct {
	mode      string
	host      string
	port      int
	start     string
	end       string
	encoding  string
	codec     string
	maxBuffer int
	idle      string
}

func (f *framingFlags) register(fs *pflag.FlagSet, withAddr bool) {
	if withAddr {
		fs.StringVar(&f.mode, "mode", "", "Network: tcp, udp, unix, unixgram, ws, quic (default from config)")
		fs.StringVar(&f.host, "host", "", "Host, or socket path for unix networks")
		fs.IntVar(&f.port, "port", 0, "Port")
		fs.StringVar(&f.idle, "peer-idle-timeout", "", "Forget datagram peers idle this long (e.g. 5m)")
	}
	fs.StringVar(&f.start, "start", "", "Start sentinel (default "+packet.DefaultStart+")")
	fs.StringVar(&f.end, "end", "", "End sentinel (default "+packet.DefaultEnd+")")
	fs.StringVar(&f.encoding, "encoding", "", "Wire charset (utf8, latin1, utf16le, ...)")
	fs.StringVar(&f.codec, "codec", "", "Payload codec: identity, json, yaml")
	fs.IntVar(&f.maxBuffer, "max-buffer", 0, "Residual buffer cap in bytes (0 = unbounded)")
}

// resolve returns a copy of base with every flag the user set applied.
func (f *framingFlags) resolve(cmd *cobra.Command, base *config.Config) (*config.Config, error) {
	c := *base
	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("mode", func() { c.Mode = f.mode })
	set("host", func() { c.Host = f.host })
	set("port", func() { c.Port = f.port })
	set("peer-idle-timeout", func() { c.Datagram.PeerIdleTimeout = f.idle })
	set("start", func() { c.Framing.StartsWith = f.start })
	set("end", func() { c.Framing.EndsWith = f.end })
	set("encoding", func() { c.Framing.Encoding = f.encoding })
	set("codec", func() { c.Framing.Codec = f.codec })
	set("max-buffer", func() { c.Framing.MaxBuffer = f.maxBuffer })

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// options resolves the flags and builds adapter options.
func (f *framingFlags) options(cmd *cobra.Command) (*config.Config, transport.Options, error) {
	c, err := f.resolve(cmd, cfg)
	if err != nil {
		return nil, transport.Options{}, err
	}
	opts, err := c.TransportOptions()
	if err != nil {
		return nil, transport.Options{}, err
	}
	return c, opts, nil
}
