// Package config loads the optional desflat.yaml project file.
//
// Every setting has a command-line flag that overrides it; the file only
// supplies defaults for a project directory.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/roach88/desflat/internal/partition"
)

// DefaultFile is the file name looked up in the working directory.
const DefaultFile = "desflat.yaml"

// Config is the decoded project file.
type Config struct {
	Format    string `yaml:"format"`
	LogLevel  string `yaml:"log_level"`
	Store     string `yaml:"store"`
	Delimiter string `yaml:"delimiter"`
	Nodes     string `yaml:"nodes"`
	Groups    Groups `yaml:"groups"`

	// Dir is the directory the file was loaded from; relative paths resolve
	// against it.
	Dir string `yaml:"-"`
}

// Groups is an ordered group -> members mapping. Declaration order in the
// file is the emission order.
type Groups []partition.Group

// UnmarshalYAML decodes a mapping while keeping key order.
func (g *Groups) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: groups must be a mapping of group name to instance list", node.Line)
	}
	out := make(Groups, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		var members []string
		if err := val.Decode(&members); err != nil {
			return fmt.Errorf("line %d: group %s: %w", val.Line, key.Value, err)
		}
		out = append(out, partition.Group{Name: key.Value, Members: members})
	}
	*g = out
	return nil
}

// Default returns the settings used when no file is present.
func Default() Config {
	return Config{
		Format:    "text",
		LogLevel:  "warn",
		Delimiter: string(partition.DefaultDelimiter),
	}
}

// Load reads a YAML project file strictly: unknown keys and trailing
// documents are errors. Unset keys keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	path = filepath.Clean(path)
	cfg.Dir = filepath.Dir(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return cfg, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("config file %s contains multiple documents or trailing content", path)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Find returns the project file in dir, or "" when there is none.
func Find(dir string) string {
	for _, name := range []string{DefaultFile, "desflat.yml"} {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch c.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("format must be text or json, got %q", c.Format)
	}
	if c.Delimiter != "" && utf8.RuneCountInString(c.Delimiter) != 1 {
		return fmt.Errorf("delimiter must be a single character, got %q", c.Delimiter)
	}
	if c.Nodes != "" && len(c.Groups) > 0 {
		return errors.New("groups and nodes are mutually exclusive")
	}
	return nil
}

// DelimiterRune returns the CSV delimiter.
func (c Config) DelimiterRune() rune {
	if c.Delimiter == "" {
		return partition.DefaultDelimiter
	}
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	return r
}

// Resolve makes a path from the file relative to the file's directory.
func (c Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// Grouper returns the grouping the file asks for: a node table, explicit
// groups, or the groups declared in the model itself.
func (c Config) Grouper() (partition.Grouper, error) {
	switch {
	case c.Nodes != "":
		table, err := partition.LoadNodeTable(c.Resolve(c.Nodes), c.DelimiterRune())
		if err != nil {
			return nil, err
		}
		return table, nil
	case len(c.Groups) > 0:
		return partition.Explicit(c.Groups), nil
	default:
		return partition.FromNetwork{}, nil
	}
}
