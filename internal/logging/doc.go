// Package logging provides structured logging for sockpacket.
//
// This package wraps a package-global zap logger. The logger is silent until
// Initialize is called, so the framing packages can log freely without
// producing output in library use or tests.
//
// # Log Levels
//
//   - Debug: chunk hex dumps, every decoded packet
//   - Info: connection events, listener state
//   - Warn: valid packets recovered from invalid input, dropped peers
//   - Error: malformed frames, parser failures, transport errors
//
// # Structured Logging
//
//	logging.Info("Peer connected",
//	    zap.String("remote_addr", "192.168.1.100:7171"),
//	    zap.String("mode", "stream"),
//	)
//
// # Configuration
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Or leave the level empty and set SOCKPACKET_LOG_LEVEL in the environment.
// Output goes to stderr so that stdout stays free for framed data.
package logging
