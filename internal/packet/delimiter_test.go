package packet

import (
	"errors"
	"testing"
)

func TestNewDelimiter(t *testing.T) {
	tests := []struct {
		name        string
		start, end  string
		charset     string
		wantStart   string
		wantEnd     string
		wantCharset string
		wantErr     bool
	}{
		{
			name:        "defaults",
			wantStart:   DefaultStart,
			wantEnd:     DefaultEnd,
			wantCharset: DefaultCharset,
		},
		{
			name:        "custom sentinels",
			start:       "<msg>",
			end:         "</msg>",
			charset:     "latin1",
			wantStart:   "<msg>",
			wantEnd:     "</msg>",
			wantCharset: "latin1",
		},
		{
			name:        "only end overridden",
			end:         "\n",
			wantStart:   DefaultStart,
			wantEnd:     "\n",
			wantCharset: DefaultCharset,
		},
		{
			name:    "unknown charset",
			charset: "not-a-charset",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDelimiter(tt.start, tt.end, tt.charset)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownCharset) {
					t.Fatalf("NewDelimiter() error = %v, want ErrUnknownCharset", err)
				}
				if !d.IsZero() {
					t.Error("failed NewDelimiter() should return a zero Delimiter")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewDelimiter() error = %v", err)
			}
			if string(d.Start()) != tt.wantStart {
				t.Errorf("Start() = %q, want %q", d.Start(), tt.wantStart)
			}
			if string(d.End()) != tt.wantEnd {
				t.Errorf("End() = %q, want %q", d.End(), tt.wantEnd)
			}
			if d.StartLen() != len(tt.wantStart) || d.EndLen() != len(tt.wantEnd) {
				t.Errorf("lengths = %d/%d, want %d/%d", d.StartLen(), d.EndLen(), len(tt.wantStart), len(tt.wantEnd))
			}
			if d.Charset() != tt.wantCharset {
				t.Errorf("Charset() = %q, want %q", d.Charset(), tt.wantCharset)
			}
		})
	}
}

func TestDelimiter_Ambiguous(t *testing.T) {
	d, _ := NewDelimiter("|", "|", "")
	if !d.Ambiguous() {
		t.Error("identical sentinels should be ambiguous")
	}
	if DefaultDelimiter().Ambiguous() {
		t.Error("default sentinels should not be ambiguous")
	}
}

func TestDelimiter_AccessorsCopy(t *testing.T) {
	d := DefaultDelimiter()
	s := d.Start()
	s[0] = 'X'
	if string(d.Start()) != DefaultStart {
		t.Error("mutating Start() result changed the delimiter")
	}
}

func TestDelimiter_IsZero(t *testing.T) {
	var zero Delimiter
	if !zero.IsZero() {
		t.Error("zero value should report IsZero")
	}
	if DefaultDelimiter().IsZero() {
		t.Error("DefaultDelimiter should not report IsZero")
	}
}
