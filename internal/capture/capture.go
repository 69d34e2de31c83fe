// Package capture records framing traffic to JSON Lines files and replays
// recorded inbound chunks through a fresh decoder.
package capture

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/muurk/sockpacket/internal/logging"
	"github.com/muurk/sockpacket/internal/packet"
	"go.uber.org/zap"
)

// Record kinds
const (
	KindChunk  = "chunk"
	KindPacket = "packet"
	KindError  = "error"
)

// Record is one captured line. Chunk records carry the full raw bytes in Hex;
// event records carry the parsed value or the error.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Seq       int       `json:"seq"`
	Remote    string    `json:"remote_addr"`
	Network   string    `json:"network,omitempty"`
	Direction string    `json:"direction,omitempty"`
	Kind      string    `json:"kind"`
	Length    int       `json:"length"`
	Hex       string    `json:"hex,omitempty"`
	ASCII     string    `json:"ascii,omitempty"`
	Value     any       `json:"value,omitempty"`
	Error     string    `json:"error,omitempty"`
	ErrorType string    `json:"error_type,omitempty"`
}

// Bytes decodes the raw chunk bytes of a chunk record.
func (r Record) Bytes() ([]byte, error) {
	return hex.DecodeString(r.Hex)
}

// Writer appends records to capture-YYYYMMDD-HHMMSS.jsonl in a directory.
// A nil *Writer discards everything, so callers need no enabled check.
type Writer struct {
	path string
	now  func() time.Time

	mu  sync.Mutex
	f   *os.File
	seq int
}

// NewWriter creates dir if needed and opens a new capture file in it.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create capture directory: %w", err)
	}

	now := time.Now
	filename := filepath.Join(dir, fmt.Sprintf("capture-%s.jsonl", now().Format("20060102-150405")))

	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}

	logging.Info("Capturing traffic", zap.String("filename", filename))
	return &Writer{path: filename, now: now, f: f}, nil
}

// Path returns the capture file path.
func (w *Writer) Path() string {
	if w == nil {
		return ""
	}
	return w.path
}

// RecordChunk captures a raw transport chunk.
func (w *Writer) RecordChunk(remote net.Addr, direction string, data []byte) {
	if w == nil {
		return
	}
	rec := Record{
		Direction: direction,
		Kind:      KindChunk,
		Length:    len(data),
		Hex:       hex.EncodeToString(data),
		ASCII:     toASCII(data),
	}
	setRemote(&rec, remote)
	w.write(rec)
}

// RecordEvent captures a decoded packet or a framing error.
func (w *Writer) RecordEvent(ev packet.Event) {
	if w == nil || ev == nil {
		return
	}
	rec := Record{Direction: "received"}
	setRemote(&rec, ev.Sender())

	switch e := ev.(type) {
	case *packet.PacketEvent:
		rec.Kind = KindPacket
		rec.Length = len(e.Payload)
		rec.Value = e.Value
	case *packet.ErrorEvent:
		rec.Kind = KindError
		rec.Length = len(e.Err.Raw)
		rec.Error = e.Err.Error()
		rec.ErrorType = e.Err.Type.String()
	default:
		return
	}
	w.write(rec)
}

func setRemote(rec *Record, a net.Addr) {
	if a == nil {
		rec.Remote = "-"
		return
	}
	rec.Remote = a.String()
	rec.Network = a.Network()
}

func (w *Writer) write(rec Record) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return
	}
	w.seq++
	rec.Seq = w.seq
	rec.Timestamp = w.now()

	data, err := json.Marshal(rec)
	if err != nil {
		// Parsed values need not be JSON friendly; keep the line without it.
		rec.Value = fmt.Sprint(rec.Value)
		if data, err = json.Marshal(rec); err != nil {
			logging.Error("Failed to marshal capture record", zap.Error(err))
			return
		}
	}

	if _, err := w.f.Write(append(data, '\n')); err != nil {
		logging.Error("Failed to write to capture file",
			zap.String("filename", w.path),
			zap.Error(err),
		)
	}
}

// Close closes the capture file.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

// toASCII converts bytes to ASCII string (non-printable chars become '.')
func toASCII(data []byte) string {
	result := make([]byte, len(data))
	for i, b := range data {
		if b >= 32 && b <= 126 {
			result[i] = b
		} else {
			result[i] = '.'
		}
	}
	return string(result)
}
