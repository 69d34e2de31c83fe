// Package transport binds the framing layer to concrete transports.
//
// Bind picks an adapter from the mode name: stream synonyms (stream, tcp,
// unix, ws, quic, ...) produce a *Stream over any io.ReadWriter, datagram
// synonyms (udp, dgram, unixgram, ...) produce a *Datagram over a
// net.PacketConn. Any other name fails with ErrInvalidMode before anything is
// started.
//
//	a, err := transport.Bind(conn, transport.Options{
//	    Mode:    "tcp",
//	    Handler: transport.HandlerFunc(func(ev packet.Event) { ... }),
//	})
//	if err != nil {
//	    return err
//	}
//	go a.Serve(ctx)
//
// A Stream owns one decoder. A Datagram owns one decoder per remote address,
// created on the first datagram from that address and optionally dropped
// after PeerIdleTimeout without traffic.
//
// WSConn and QUICStream adapt WebSocket connections and QUIC streams to the
// stream adapter.
package transport
