package packet

import (
	"errors"
	"testing"
)

type point struct{ X, Y int }

func (p point) String() string { return "point" }

func TestEncoder_Encode(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"string", "hello", frame("hello")},
		{"bytes", []byte("raw"), frame("raw")},
		{"nil is empty text", nil, S + E},
		{"number", 42, frame("42")},
		{"stringer", point{1, 2}, frame("point")},
		{"error value", errors.New("boom"), frame("boom")},
	}

	enc := NewEncoder(DefaultDelimiter(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := enc.Encode(tt.value)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Encode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncoder_ZeroDelimiter(t *testing.T) {
	got, err := NewEncoder(Delimiter{}, nil).Encode("x")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if string(got) != frame("x") {
		t.Errorf("Encode() = %q, want default sentinels", got)
	}
}

func TestEncoder_StringifierErrorPropagates(t *testing.T) {
	cause := errors.New("cannot stringify")
	enc := NewEncoder(DefaultDelimiter(), StringifierFunc(func(any) (string, error) {
		return "", cause
	}))

	got, err := enc.Encode("anything")
	if !errors.Is(err, cause) {
		t.Fatalf("Encode() error = %v, want %v", err, cause)
	}
	if got != nil {
		t.Errorf("Encode() = %q, want nil bytes on error", got)
	}
}

func TestRoundTrip(t *testing.T) {
	payloads := []string{
		"a",
		"hello world",
		"{\"k\":[1,2,3]}",
		"line one\nline two",
		"unicode ✓ ünïcödé",
		"-!@ almost a sentinel",
	}

	d := DefaultDelimiter()
	enc := NewEncoder(d, nil)
	for _, p := range payloads {
		t.Run(p, func(t *testing.T) {
			wire, err := enc.Encode(p)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			events := NewProcessor(d, ProcessorOptions{}).Process(wire, nil)
			if len(events) != 1 {
				t.Fatalf("got %d events, want 1", len(events))
			}
			pe, ok := events[0].(*PacketEvent)
			if !ok {
				t.Fatalf("event = %v, want *PacketEvent", events[0])
			}
			if pe.Value != p {
				t.Errorf("Value = %q, want %q", pe.Value, p)
			}
		})
	}
}
