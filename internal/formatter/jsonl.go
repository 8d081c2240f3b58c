package formatter

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONLFormatter writes values as JSON Lines: one compact object per line.
type JSONLFormatter struct {
	// Pretty enables indented JSON (not recommended for JSONL).
	Pretty bool
}

// NewJSONLFormatter creates a new JSONL formatter.
func NewJSONLFormatter() *JSONLFormatter {
	return &JSONLFormatter{
		Pretty: false,
	}
}

// Format writes v as a single JSON line.
func (jf *JSONLFormatter) Format(w io.Writer, v any) error {
	return jf.encoder(w).Encode(v)
}

// Extension returns the file extension for JSONL.
func (jf *JSONLFormatter) Extension() string {
	return ".jsonl"
}

func (jf *JSONLFormatter) encoder(w io.Writer) *json.Encoder {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false) // Don't escape < > & in content
	if jf.Pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder
}

// WriteJSONL writes each item as its own line. It stops at the first
// encoding or write error and reports the failing index.
func WriteJSONL[T any](w io.Writer, items []T) error {
	enc := NewJSONLFormatter().encoder(w)
	for i, item := range items {
		if err := enc.Encode(item); err != nil {
			return fmt.Errorf("encode item %d: %w", i, err)
		}
	}
	return nil
}
