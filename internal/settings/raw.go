package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Raw is the undecoded shape of a project settings file. Relative paths are
// resolved against Root.
type Raw struct {
	// Root is the project directory, normally the directory holding the settings file.
	Root string `yaml:"-" json:"-"`

	Name         string       `yaml:"name" json:"name"`
	Description  string       `yaml:"description" json:"description"`
	SourceDir    string       `yaml:"sourceDir" json:"sourceDir"`
	PublicDir    string       `yaml:"publicDir" json:"publicDir"`
	OutputDir    string       `yaml:"outputDir" json:"outputDir"`
	Entry        string       `yaml:"entry" json:"entry"`
	HTMLTemplate string       `yaml:"htmlTemplate" json:"htmlTemplate"`
	Favicon      string       `yaml:"favicon" json:"favicon"`
	DevServer    RawDevServer `yaml:"devServer" json:"devServer"`
	Aliases      AliasTable   `yaml:"aliases" json:"aliases"`
	Images       RawImages    `yaml:"images" json:"images"`
}

type RawDevServer struct {
	Port  int               `yaml:"port" json:"port"`
	Proxy map[string]string `yaml:"proxy" json:"proxy"`
}

type RawImages struct {
	Sizes           []int  `yaml:"sizes" json:"sizes"`
	PlaceholderSize int    `yaml:"placeholderSize" json:"placeholderSize"`
	OutputPath      string `yaml:"outputPath" json:"outputPath"`
	Quality         int    `yaml:"quality" json:"quality"`
}

// Alias maps an import prefix to a filesystem path.
type Alias struct {
	Name string
	Path string
}

// AliasTable keeps aliases in declaration order. It decodes from a YAML or JSON
// mapping and rejects duplicate keys, which plain map decoding would silently drop.
type AliasTable []Alias

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *AliasTable) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return invalid("aliases", value.Tag, "must be a mapping of alias to path")
	}

	seen := make(map[string]bool, len(value.Content)/2)
	table := make(AliasTable, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		var name, path string
		if err := value.Content[i].Decode(&name); err != nil {
			return err
		}
		if err := value.Content[i+1].Decode(&path); err != nil {
			return fmt.Errorf("alias %q: %w", name, err)
		}
		if seen[name] {
			return invalid("aliases", name, "duplicate alias")
		}
		seen[name] = true
		table = append(table, Alias{Name: name, Path: path})
	}

	*t = table
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *AliasTable) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*t = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return invalid("aliases", tok, "must be an object of alias to path")
	}

	seen := make(map[string]bool)
	table := AliasTable{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return errors.New("alias key must be a string")
		}
		var path string
		if err := dec.Decode(&path); err != nil {
			return fmt.Errorf("alias %q: %w", name, err)
		}
		if seen[name] {
			return invalid("aliases", name, "duplicate alias")
		}
		seen[name] = true
		table = append(table, Alias{Name: name, Path: path})
	}

	*t = table
	return nil
}
