package provider

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLocalFileProviderLoadsYAML(t *testing.T) {
	dir := t.TempDir()
	doc := "id: demo\nname: Demo\nversion: \"1\"\nsteps:\n  - stepId: s1\n    title: S1\n    prompt: do s1\n  - stepId: s2\n    title: S2\n    prompt: do s2\n"
	if err := os.WriteFile(filepath.Join(dir, "demo.yaml"), []byte(doc), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	p := NewLocalFileProvider(dir)
	def, err := p.GetWorkflowById("demo")
	if err != nil {
		t.Fatalf("GetWorkflowById: %v", err)
	}
	if def == nil {
		t.Fatal("expected a definition, got nil")
	}
	if def["name"] != "Demo" {
		t.Fatalf("got name %v, want Demo", def["name"])
	}
	steps, ok := def["steps"].([]any)
	if !ok || len(steps) != 2 {
		t.Fatalf("got steps %v, want 2 entries", def["steps"])
	}
}

func TestLocalFileProviderMissingReturnsNilNotError(t *testing.T) {
	p := NewLocalFileProvider(t.TempDir())
	def, err := p.GetWorkflowById("does-not-exist")
	if err != nil {
		t.Fatalf("expected no error for missing workflow, got %v", err)
	}
	if def != nil {
		t.Fatalf("expected nil definition, got %v", def)
	}
}

func TestLocalFileProviderDefaultsIdFromFilename(t *testing.T) {
	dir := t.TempDir()
	doc := "name: NoId\nsteps: []\n"
	if err := os.WriteFile(filepath.Join(dir, "noid.yaml"), []byte(doc), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	p := NewLocalFileProvider(dir)
	def, err := p.GetWorkflowById("noid")
	if err != nil {
		t.Fatalf("GetWorkflowById: %v", err)
	}
	if def["id"] != "noid" {
		t.Fatalf("got id %v, want noid", def["id"])
	}
}
