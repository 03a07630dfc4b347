package pipeline

import (
	"fmt"
	"strings"
)

// NewFileWriter opens a file-backed writer for format (csv, json or dual).
// The dual JSON file sits next to filename with a .json extension.
func NewFileWriter(format, filename string) (OutputWriter, error) {
	switch strings.ToLower(format) {
	case "json":
		return NewJSONWriter(filename)
	case "csv":
		return NewCSVWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".json"
		return NewDualWriter(filename, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
