// Package source decodes JSON and YAML documents into raw record input.
//
// Every decoder returns a map[string]any whose numbers keep their precision
// (json.Number for JSON, int64/float64 for YAML) so the record layer can cast
// them against the declared field types.
package source

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/reoring/cabinet"
	"github.com/reoring/cabinet/i18n"
)

// Format identifies an input encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat resolves a user supplied format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("source: unsupported format %q", s)
}

// FormatFromPath guesses the format from a file extension. Unknown
// extensions are treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// JSON decodes a JSON object.
func JSON(data []byte) (map[string]any, error) {
	return cabinet.DecodeJSON(data)
}

// Read consumes r entirely and decodes it as f. For JSON the last of
// repeated keys wins; YAML always rejects them.
func Read(r io.Reader, f Format) (map[string]any, error) {
	return read(r, f, false)
}

// ReadStrict is Read with repeated JSON keys rejected.
func ReadStrict(r io.Reader, f Format) (map[string]any, error) {
	return read(r, f, true)
}

func read(r io.Reader, f Format, strict bool) (map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, parseError("/", err)
	}
	switch f {
	case FormatYAML:
		return YAML(data)
	case FormatJSON, "":
		if strict {
			return JSONStrict(data)
		}
		return JSON(data)
	}
	return nil, parseError("/", fmt.Errorf("unsupported format %q", f))
}

func parseError(path string, cause error) error {
	return cabinet.Issue{
		Path:    path,
		Code:    cabinet.CodeParseError,
		Message: i18n.T(cabinet.CodeParseError, nil),
		Cause:   cause,
	}
}
