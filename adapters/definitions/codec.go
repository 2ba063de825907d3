// Package definitions loads processing definition documents from files and
// from site settings.
package definitions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/artpar/caas/domain/definition"
)

// Format is a document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// FormatOf returns the format implied by a file extension.
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".toml":
		return FormatTOML, true
	case ".json":
		return FormatJSON, true
	}
	return "", false
}

// Decode parses a definition document.
func Decode(format Format, data []byte) (definition.Document, error) {
	var doc definition.Document
	var err error

	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	case FormatTOML:
		err = toml.Unmarshal(data, &doc)
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&doc)
	default:
		return doc, fmt.Errorf("unsupported definition format %q", format)
	}
	if err != nil {
		return doc, fmt.Errorf("decode %s definition: %w", format, err)
	}
	return doc, nil
}

// DecodeSetting parses a document stored as a setting value.
// JSON objects are detected by their leading brace, everything else is YAML.
func DecodeSetting(value string) (definition.Document, error) {
	if strings.HasPrefix(strings.TrimSpace(value), "{") {
		return Decode(FormatJSON, []byte(value))
	}
	return Decode(FormatYAML, []byte(value))
}

// Encode serializes a definition document.
func Encode(format Format, doc definition.Document) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(doc)
	case FormatTOML:
		return toml.Marshal(doc)
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	}
	return nil, fmt.Errorf("unsupported definition format %q", format)
}
