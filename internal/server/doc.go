// Package server listens on one network and frames every connection it
// accepts.
//
// Stream networks (tcp, unix, ws, quic) get one transport.Stream, and so one
// residual buffer, per connection or per QUIC stream. Datagram networks (udp,
// unixgram) share one transport.Datagram that keeps a buffer per sender.
//
// # Usage Example
//
//	srv, err := server.New(&server.Config{
//	    Network: "tcp",
//	    Port:    7171,
//	    Handler: server.HandlerFunc(func(r server.Replier, ev packet.Event) {
//	        if p, ok := ev.(*packet.PacketEvent); ok {
//	            _ = r.Reply(p.Value)
//	        }
//	    }),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Start blocks until ctx is done, a shutdown signal arrives or the
//	// listener fails.
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # TLS
//
// QUIC always runs over TLS; without Config.TLS a self-signed certificate is
// generated in memory. TCP and WebSocket listeners use TLS only when
// Config.TLS is set.
//
// # Capture
//
// With Config.CaptureDir set every raw chunk and every event is appended to a
// capture-YYYYMMDD-HHMMSS.jsonl file that `sockpacket replay` can re-decode.
//
// # Shutdown
//
// Shutdown closes the listener and every tracked connection, then waits up to
// 10 seconds (or until its context is done) for handlers to return.
package server
