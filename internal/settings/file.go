package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a YAML (.yaml, .yml) or JSON (.json, .jsonc) settings file and
// validates it. JSON files may contain comments and trailing commas. The file's
// directory becomes the project root.
func LoadFile(path string) (*Settings, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve settings path: %w", err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	raw, err := Decode(filepath.Ext(abs), data)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return nil, err
		}
		// syntax and type errors from the decoders are reported as validation failures
		return nil, invalid("settings", path, "%v", err)
	}
	raw.Root = filepath.Dir(abs)

	return Load(raw)
}

// Decode parses settings data in the format implied by ext. Unknown fields are
// rejected.
func Decode(ext string, data []byte) (Raw, error) {
	var raw Raw

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&raw); err != nil {
			return Raw{}, err
		}
	case ".json", ".jsonc":
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&raw); err != nil {
			return Raw{}, err
		}
	default:
		return Raw{}, fmt.Errorf("unsupported settings format %q", ext)
	}

	return raw, nil
}
