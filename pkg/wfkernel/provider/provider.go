// Package provider defines the WorkflowProvider contract the orchestrator
// consumes to resolve a workflowId to a WorkflowDefinition, plus a
// local-file implementation backed by YAML runbooks on disk.
package provider

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// WorkflowProvider resolves a workflowId to its definition. Implementations
// may be backed by local files, a bundled registry, or a remote service;
// the core treats it as an opaque collaborator.
type WorkflowProvider interface {
	// GetWorkflowById returns the raw definition map for id, or (nil, nil)
	// if id is unknown. The map is passed to interpreter.FromDefinitionMap
	// and separately canonicalized to compute the workflow hash.
	GetWorkflowById(id string) (map[string]any, error)
}

// LocalFileProvider resolves workflowIds to "<dir>/<id>.yaml" (or .yml)
// files, parsed as the same kind of step/tree document the teacher's
// schema package accepts from YAML runbooks.
type LocalFileProvider struct {
	dir string
}

// NewLocalFileProvider returns a provider rooted at dir.
func NewLocalFileProvider(dir string) *LocalFileProvider {
	return &LocalFileProvider{dir: dir}
}

// GetWorkflowById loads <dir>/<id>.yaml (preferred) or <dir>/<id>.yml.
func (p *LocalFileProvider) GetWorkflowById(id string) (map[string]any, error) {
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(p.dir, id+ext)
		b, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("provider: read %s: %w", path, err)
		}
		var m map[string]any
		if err := yaml.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("provider: parse %s: %w", path, err)
		}
		if m["id"] == nil {
			m["id"] = id
		}
		return m, nil
	}
	return nil, nil
}

// ensure LocalFileProvider satisfies WorkflowProvider at compile time.
var _ WorkflowProvider = (*LocalFileProvider)(nil)
