package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

func checkFormat(format string) error {
	switch format {
	case "json", "yaml":
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want json or yaml)", format)
	}
}

// writeOutput prints v as indented JSON or as YAML. YAML keys follow the
// JSON field names so both formats describe the same document.
func writeOutput(w io.Writer, format string, v any) error {
	if err := checkFormat(format); err != nil {
		return err
	}

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
