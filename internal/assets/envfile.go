package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnvFiles reads dotenv files in order, later files overriding earlier
// ones. Missing files are skipped.
func LoadEnvFiles(paths ...string) (map[string]string, error) {
	vars := map[string]string{}
	for _, path := range paths {
		loaded, err := LoadEnvFile(path)
		if err != nil {
			return nil, err
		}
		maps.Copy(vars, loaded)
	}
	return vars, nil
}

// LoadEnvFile reads KEY=value pairs from a dotenv file. A missing file yields
// no variables.
func LoadEnvFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParseEnv(data, path)
}

// ParseEnv parses dotenv content, name is used in error messages
func ParseEnv(data []byte, name string) (map[string]string, error) {
	vars, err := godotenv.UnmarshalBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return vars, nil
}
