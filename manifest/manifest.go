// Package manifest loads declarative pipelines: a YAML or TOML file naming
// resources and Lua-scripted tasks, compiled into a runnable Pipeline over a
// Blackboard world.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	pipeline "github.com/seoyhaein/pipeline-go"
)

var (
	ErrUnknownEngine   = errors.New("unknown engine")
	ErrUnknownLayer    = errors.New("unknown layer")
	ErrUnknownResource = errors.New("unknown resource")
	ErrUnknownFormat   = errors.New("unknown manifest format")
)

// ParseError reports a manifest that could not be read, decoded or
// validated. Path is "<input>" for data passed to Parse.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("manifest %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Format selects the decoder.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
	}
}

// Engine names accepted in scheduler.engine.
const (
	EngineSequential = "sequential"
	EngineParallel   = "parallel"
	EngineJobs       = "jobs"
)

// Scheduler selects and tunes the engine.
type Scheduler struct {
	Engine       string `yaml:"engine" toml:"engine"`
	Workers      int    `yaml:"workers" toml:"workers"`
	MaxWaveWidth int    `yaml:"max_wave_width" toml:"max_wave_width"`
	// SplitOnAccess defaults to true when omitted.
	SplitOnAccess *bool `yaml:"split_on_access" toml:"split_on_access"`
}

// TaskDef declares one task.
type TaskDef struct {
	Name      string   `yaml:"name" toml:"name"`
	Layer     string   `yaml:"layer" toml:"layer"`
	Deps      []string `yaml:"deps" toml:"deps"`
	Exclusive bool     `yaml:"exclusive" toml:"exclusive"`
	Reads     []string `yaml:"reads" toml:"reads"`
	Writes    []string `yaml:"writes" toml:"writes"`
	Script    string   `yaml:"script" toml:"script"`
}

// Manifest is the decoded file.
type Manifest struct {
	Scheduler Scheduler      `yaml:"scheduler" toml:"scheduler"`
	Resources map[string]any `yaml:"resources" toml:"resources"`
	Tasks     []TaskDef      `yaml:"tasks" toml:"tasks"`

	// Path is the file the manifest was loaded from, if any.
	Path string `yaml:"-" toml:"-"`
}

// Load reads and validates the manifest at path. The format follows the
// file extension.
func Load(path string) (*Manifest, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	m, err := decode(data, format)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	m.Path = path
	return m, nil
}

// Parse decodes and validates a manifest held in memory.
func Parse(data []byte, format Format) (*Manifest, error) {
	m, err := decode(data, format)
	if err != nil {
		return nil, &ParseError{Path: "<input>", Err: err}
	}
	return m, nil
}

func decode(data []byte, format Format) (*Manifest, error) {
	var m Manifest
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, err
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks everything that can be checked without building the graph:
// engine and layer names, resource references and resource value types.
// Dependency errors are left to the builder.
func (m *Manifest) Validate() error {
	if _, err := engineName(m.Scheduler.Engine); err != nil {
		return err
	}
	for name, v := range m.Resources {
		if _, err := normalize(v); err != nil {
			return fmt.Errorf("resource %q: %w", name, err)
		}
	}
	for i, t := range m.Tasks {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("task #%d has no name", i)
		}
		if _, err := pipeline.ParseLayer(t.Layer); err != nil {
			return fmt.Errorf("task %q: %w: %q", t.Name, ErrUnknownLayer, t.Layer)
		}
		for _, r := range append(append([]string(nil), t.Reads...), t.Writes...) {
			if _, ok := m.Resources[r]; !ok {
				return fmt.Errorf("task %q: %w: %q", t.Name, ErrUnknownResource, r)
			}
		}
	}
	return nil
}

func engineName(s string) (string, error) {
	switch name := strings.ToLower(strings.TrimSpace(s)); name {
	case "":
		return EngineParallel, nil
	case EngineSequential, EngineParallel, EngineJobs:
		return name, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEngine, s)
	}
}
