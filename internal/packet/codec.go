package packet

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Stringifier turns an application value into payload text.
type Stringifier interface {
	Stringify(v any) (string, error)
}

// Parser turns payload text back into an application value.
type Parser interface {
	Parse(text string) (any, error)
}

// StringifierFunc adapts a function to the Stringifier interface
type StringifierFunc func(v any) (string, error)

// Stringify implements Stringifier
func (f StringifierFunc) Stringify(v any) (string, error) { return f(v) }

// ParserFunc adapts a function to the Parser interface
type ParserFunc func(text string) (any, error)

// Parse implements Parser
func (f ParserFunc) Parse(text string) (any, error) { return f(text) }

// DefaultStringifier renders a value with its natural text form. A nil value
// becomes empty text.
var DefaultStringifier Stringifier = StringifierFunc(defaultStringify)

// IdentityParser returns the payload text unchanged.
var IdentityParser Parser = ParserFunc(func(text string) (any, error) {
	return text, nil
})

func defaultStringify(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case fmt.Stringer:
		return val.String(), nil
	case error:
		return val.Error(), nil
	default:
		return fmt.Sprint(val), nil
	}
}

// JSONCodec stringifies values as compact JSON and parses payloads as JSON.
type JSONCodec struct{}

// Stringify implements Stringifier
func (JSONCodec) Stringify(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal packet as JSON: %w", err)
	}
	return string(data), nil
}

// Parse implements Parser
func (JSONCodec) Parse(text string) (any, error) {
	var out any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON packet: %w", err)
	}
	return out, nil
}

// YAMLCodec stringifies values as YAML documents and parses payloads as YAML.
type YAMLCodec struct{}

// Stringify implements Stringifier
func (YAMLCodec) Stringify(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal packet as YAML: %w", err)
	}
	return string(data), nil
}

// Parse implements Parser
func (YAMLCodec) Parse(text string) (any, error) {
	var out any
	if err := yaml.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML packet: %w", err)
	}
	return out, nil
}

// CodecByName returns the stringifier/parser pair registered under name.
// Known names: identity (or text, empty), json, yaml (or yml).
func CodecByName(name string) (Stringifier, Parser, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "identity", "text":
		return DefaultStringifier, IdentityParser, nil
	case "json":
		return JSONCodec{}, JSONCodec{}, nil
	case "yaml", "yml":
		return YAMLCodec{}, YAMLCodec{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown codec: %q", name)
	}
}
