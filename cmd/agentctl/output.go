package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// encode writes v in a machine readable format and reports whether the
// current --output asked for one.
func encode(w io.Writer, v any) (bool, error) {
	switch outputFormat {
	case "", "text", "table":
		return false, nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	default:
		return true, fmt.Errorf("unknown output format %q (want text, json or yaml)", outputFormat)
	}
}
