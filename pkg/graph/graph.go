package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

// =============================================================================
// JSON Serialization API
// =============================================================================

// Marshal converts a result to indented JSON bytes.
func Marshal(r *Result) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(r, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write writes a result as JSON to an io.Writer.
func Write(r *Result, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// WriteFile writes a result to a JSON file.
// The file is created with 0644 permissions.
func WriteFile(r *Result, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return Write(r, f)
}

// Unmarshal decodes JSON bytes into a result.
func Unmarshal(data []byte) (*Result, error) {
	return Read(bytes.NewReader(data))
}

// Read decodes a JSON result from an io.Reader.
func Read(r io.Reader) (*Result, error) {
	var res Result
	if err := json.NewDecoder(r).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &res, nil
}

// ReadFile reads a JSON result file.
func ReadFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// =============================================================================
// Binary Serialization API
// =============================================================================

// Encode converts a result to MessagePack, the format used by result caches.
func Encode(r *Result) ([]byte, error) {
	data, err := msgpack.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return data, nil
}

// Decode decodes a MessagePack result.
func Decode(data []byte) (*Result, error) {
	var res Result
	if err := msgpack.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &res, nil
}
