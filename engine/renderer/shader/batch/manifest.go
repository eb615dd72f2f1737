package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader/session"
)

// Manifest lists the pipelines a batch build compiles. Relative paths are resolved
// against the directory of the manifest file.
//
//	{
//	  "output": "build/shaders",
//	  "pipelines": [
//	    {
//	      "name": "lit",
//	      "stages": ["mesh.vert", "lit.frag"],
//	      "macros": [{"define": "USE_SHADOWS", "stages": ["frag"]}]
//	    }
//	  ]
//	}
type Manifest struct {
	Output    string          `json:"output"`
	Pipelines []PipelineEntry `json:"pipelines"`

	// Dir is the directory relative paths are resolved against.
	Dir string `json:"-"`
}

// PipelineEntry is one pipeline of a manifest.
type PipelineEntry struct {
	Name   string       `json:"name"`
	Stages []string     `json:"stages"`
	Macros []MacroEntry `json:"macros,omitempty"`
}

// MacroEntry is a macro definition and the stages it applies to. An empty stage list
// applies the macro to every stage.
type MacroEntry struct {
	Define string   `json:"define"`
	Stages []string `json:"stages,omitempty"`
}

// LoadManifest reads and validates a manifest file.
//
// Parameters:
//   - path: the manifest path
//
// Returns:
//   - *Manifest: the manifest with Dir set to the file's directory
//   - error: an error if the file cannot be read or is invalid
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manifest directory: %w", err)
	}
	m.Dir = abs
	return m, nil
}

// ParseManifest decodes and validates manifest JSON. Dir is left empty.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	seen := make(map[string]bool, len(m.Pipelines))
	for i, p := range m.Pipelines {
		if p.Name == "" {
			return fmt.Errorf("pipeline %d has no name", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate pipeline %q", p.Name)
		}
		seen[p.Name] = true
		if len(p.Stages) == 0 {
			return fmt.Errorf("pipeline %q has no stages", p.Name)
		}
		for _, macro := range p.Macros {
			if macro.Define == "" {
				return fmt.Errorf("pipeline %q has a macro without a definition", p.Name)
			}
		}
	}
	return nil
}

// Resolve returns path resolved against the manifest directory.
func (m *Manifest) Resolve(path string) string {
	if filepath.IsAbs(path) || m.Dir == "" {
		return path
	}
	return filepath.Join(m.Dir, path)
}

// Definition converts a manifest entry into a session pipeline definition with resolved
// stage paths.
//
// Parameters:
//   - entry: the manifest entry
//
// Returns:
//   - session.PipelineDefinition: the definition
//   - error: an UnsupportedStageExtension error for an unknown macro stage name
func (m *Manifest) Definition(entry PipelineEntry) (session.PipelineDefinition, error) {
	def := session.PipelineDefinition{Name: entry.Name}
	for _, stage := range entry.Stages {
		def.Stages = append(def.Stages, m.Resolve(stage))
	}
	for _, macro := range entry.Macros {
		mask := shader.StageMaskAll
		if len(macro.Stages) > 0 {
			var err error
			if mask, err = shader.ParseStageMask(macro.Stages); err != nil {
				return def, err
			}
		}
		def.Macros = append(def.Macros, shader.Macro{Stages: mask, Text: macro.Define})
	}
	return def, nil
}
