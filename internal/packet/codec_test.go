package packet

import (
	"reflect"
	"testing"
)

func TestJSONCodec(t *testing.T) {
	var c JSONCodec

	text, err := c.Stringify(map[string]any{"id": 7, "name": "tap"})
	if err != nil {
		t.Fatalf("Stringify() error = %v", err)
	}
	if text != `{"id":7,"name":"tap"}` {
		t.Errorf("Stringify() = %s", text)
	}

	got, err := c.Parse(text)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := map[string]any{"id": float64(7), "name": "tap"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse() = %#v, want %#v", got, want)
	}

	if _, err := c.Parse("{not json"); err == nil {
		t.Error("Parse() should fail on invalid JSON")
	}
	if text, _ := c.Stringify(nil); text != "" {
		t.Errorf("Stringify(nil) = %q, want empty", text)
	}
}

func TestYAMLCodec(t *testing.T) {
	var c YAMLCodec

	got, err := c.Parse("name: tap\nports: [1, 2]\n")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := map[string]any{"name": "tap", "ports": []any{1, 2}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse() = %#v, want %#v", got, want)
	}

	if _, err := c.Parse("key: [unterminated"); err == nil {
		t.Error("Parse() should fail on invalid YAML")
	}
}

func TestCodecByName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"", false},
		{"identity", false},
		{"text", false},
		{"JSON", false},
		{"yaml", false},
		{"yml", false},
		{"msgpack", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, p, err := CodecByName(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CodecByName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if !tt.wantErr && (s == nil || p == nil) {
				t.Errorf("CodecByName(%q) returned a nil codec", tt.name)
			}
		})
	}
}

func TestIdentityParser(t *testing.T) {
	got, err := IdentityParser.Parse("as-is")
	if err != nil || got != "as-is" {
		t.Errorf("Parse() = %v, %v; want as-is, nil", got, err)
	}
}
