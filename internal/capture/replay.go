package capture

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/muurk/sockpacket/internal/packet"
)

// maxLine bounds one JSONL line; chunk records hex-encode up to 64 KiB.
const maxLine = 1 << 20

// Read loads every record from a capture file.
func Read(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadFrom(f)
}

// ReadFrom decodes JSONL records from r. Blank lines are skipped.
func ReadFrom(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	var records []Record
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("failed to parse capture line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read capture: %w", err)
	}
	return records, nil
}

// replayAddr stands in for the recorded remote address.
type replayAddr struct {
	network string
	addr    string
}

func (a replayAddr) Network() string { return a.network }
func (a replayAddr) String() string  { return a.addr }

// Replay feeds the received chunk records back through the framing layer, one
// processor per recorded remote, and returns the events in record order.
// newProc is called once per remote.
func Replay(records []Record, newProc func() *packet.Processor) ([]packet.Event, error) {
	procs := make(map[string]*packet.Processor)

	var events []packet.Event
	for _, rec := range records {
		if rec.Kind != KindChunk || rec.Direction != "received" {
			continue
		}
		data, err := rec.Bytes()
		if err != nil {
			return events, fmt.Errorf("failed to decode chunk %d: %w", rec.Seq, err)
		}

		p, ok := procs[rec.Remote]
		if !ok {
			p = newProc()
			procs[rec.Remote] = p
		}
		events = append(events, p.Process(data, replayAddr{network: rec.Network, addr: rec.Remote})...)
	}
	return events, nil
}
