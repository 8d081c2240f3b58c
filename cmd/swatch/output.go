package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/boshu2/sessionwatch/internal/formatter"
)

// Output formats accepted by -o.
const (
	formatTable    = "table"
	formatJSON     = "json"
	formatJSONL    = "jsonl"
	formatYAML     = "yaml"
	formatMarkdown = "markdown"
)

// renderList writes items in format. table renders the human form.
func renderList[T any](w io.Writer, format string, items []T, table func(io.Writer) error) error {
	switch format {
	case formatJSONL:
		return formatter.WriteJSONL(w, items)
	case formatJSON, formatYAML:
		return renderStructured(w, format, items)
	case formatTable, "":
		return table(w)
	}
	return fmt.Errorf("unknown output format %q (want table, json, jsonl or yaml)", format)
}

// renderOne writes a single value in format. text renders the human form.
func renderOne(w io.Writer, format string, v any, text func(io.Writer) error) error {
	switch format {
	case formatJSONL:
		return formatter.NewJSONLFormatter().Format(w, v)
	case formatJSON, formatYAML:
		return renderStructured(w, format, v)
	case formatTable, "":
		return text(w)
	}
	return fmt.Errorf("unknown output format %q (want table, json, jsonl or yaml)", format)
}

func renderStructured(w io.Writer, format string, v any) error {
	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return writeYAML(w, v)
}

// writeYAML encodes v through its JSON form so YAML keys match the JSON
// field names.
func writeYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("convert to yaml: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}
