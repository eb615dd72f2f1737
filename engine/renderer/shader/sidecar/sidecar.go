// Package sidecar reads and writes the JSON metadata file stored next to every compiled
// artifact, and decides whether an artifact is up to date with its sources.
package sidecar

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader"
)

// Extension is appended to the artifact path to name its sidecar.
const Extension = ".json"

// Metadata describes a compiled artifact: where it came from and the binding layout the
// stage resolved to.
type Metadata struct {
	Stage         string                     `json:"stage"`
	Source        string                     `json:"source"`
	Macros        []string                   `json:"macros"`
	Descriptors   []shader.Descriptor        `json:"descriptors"`
	PushConstants []shader.PushConstantRange `json:"push_constants"`
	VertexInputs  []shader.VertexInput       `json:"vertex_inputs,omitempty"`
	Includes      []string                   `json:"includes,omitempty"`
}

// FromModule builds the metadata of a compiled module.
//
// Parameters:
//   - m: the compiled module
//
// Returns:
//   - Metadata: the module's stage, source, macros, bindings and includes
func FromModule(m *shader.CompiledModule) Metadata {
	md := Metadata{
		Stage:         m.Stage.Abbrev(),
		Source:        m.CanonicalPath,
		Macros:        append([]string{}, m.Macros...),
		Descriptors:   m.Descriptors(),
		PushConstants: m.PushConstantRanges,
		VertexInputs:  m.VertexInputs,
		Includes:      m.Includes,
	}
	if md.Descriptors == nil {
		md.Descriptors = []shader.Descriptor{}
	}
	if md.PushConstants == nil {
		md.PushConstants = []shader.PushConstantRange{}
	}
	return md
}

// Path returns the sidecar path of an artifact.
func Path(artifact string) string {
	return artifact + Extension
}

// Write stores md next to artifact. The file is written to a temporary name first and
// renamed so readers never observe a partial sidecar.
//
// Parameters:
//   - artifact: the artifact path
//   - md: the metadata to store
//
// Returns:
//   - error: an error if the file could not be written
func Write(artifact string, md Metadata) error {
	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode sidecar for %s: %w", artifact, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(artifact), filepath.Base(artifact)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create sidecar for %s: %w", artifact, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write sidecar for %s: %w", artifact, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write sidecar for %s: %w", artifact, err)
	}
	if err := os.Rename(tmp.Name(), Path(artifact)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write sidecar for %s: %w", artifact, err)
	}
	return nil
}

// Read loads the sidecar of an artifact.
func Read(artifact string) (Metadata, error) {
	var md Metadata
	data, err := os.ReadFile(Path(artifact))
	if err != nil {
		return md, err
	}
	if err := json.Unmarshal(data, &md); err != nil {
		return md, fmt.Errorf("failed to decode sidecar %s: %w", Path(artifact), err)
	}
	return md, nil
}

// UpToDate reports whether artifact is newer than source and every include recorded in
// its sidecar. A missing artifact or sidecar is never up to date. A missing source is
// reported as an error so the build surfaces it instead of keeping a stale artifact.
//
// Parameters:
//   - artifact: the artifact path
//   - source: the stage source path
//
// Returns:
//   - bool: true if the artifact can be reused
//   - error: a MissingSourceFile error if source cannot be read
func UpToDate(artifact, source string) (bool, error) {
	srcInfo, err := os.Stat(source)
	if err != nil {
		return false, &shader.Error{Kind: shader.ErrMissingSourceFile, Path: source, Err: err}
	}
	artInfo, err := os.Stat(artifact)
	if err != nil {
		return false, nil
	}
	built := artInfo.ModTime()
	if !built.After(srcInfo.ModTime()) {
		return false, nil
	}

	md, err := Read(artifact)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			shader.Logger().Debug("unreadable sidecar", "artifact", artifact, "error", err)
		}
		return false, nil
	}
	for _, include := range md.Includes {
		info, err := os.Stat(include)
		if err != nil || !built.After(info.ModTime()) {
			return false, nil
		}
	}
	return true, nil
}
