// Package kerneltest is a small, temp-directory-backed harness for
// driving an orchestrator through a full start/continue round trip in
// tests, adapted from the teacher's scenario-based test runner
// (pkg/kernel/testing) onto the token-orchestrated workflow engine: instead
// of replaying canned tool evidence against an engine, it walks a scripted
// sequence of step acknowledgements against the orchestrator and evaluates
// assertions on which steps were visited and how the run ended.
package kerneltest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/orchestrator"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/provider"
)

// Harness owns a temp-dir-backed orchestrator and local-file workflow
// provider, torn down automatically at test cleanup via t.TempDir.
type Harness struct {
	t       *testing.T
	provDir string
	Orch    *orchestrator.Orchestrator
}

// New opens a Harness rooted at a fresh t.TempDir.
func New(t *testing.T) *Harness {
	t.Helper()
	root := t.TempDir()
	provDir := filepath.Join(root, "workflows")
	if err := os.MkdirAll(provDir, 0o755); err != nil {
		t.Fatalf("kerneltest: mkdir workflows dir: %v", err)
	}
	o, err := orchestrator.Open(filepath.Join(root, "data"), provider.NewLocalFileProvider(provDir))
	if err != nil {
		t.Fatalf("kerneltest: open orchestrator: %v", err)
	}
	return &Harness{t: t, provDir: provDir, Orch: o}
}

// WriteWorkflow writes a YAML workflow document under the harness's
// provider directory so it resolves by id.
func (h *Harness) WriteWorkflow(id, yamlDoc string) {
	h.t.Helper()
	path := filepath.Join(h.provDir, id+".yaml")
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		h.t.Fatalf("kerneltest: write workflow %q: %v", id, err)
	}
}

// Step is one scripted acknowledgement: the step id expected to be
// pending, and the recap notes (if any) to attach when acking it.
type Step struct {
	ExpectStepId  string
	NotesMarkdown string
}

// RunResult captures what happened across a scripted run, in the spirit of
// the teacher's RunResult (status, visited steps, final outputs).
type RunResult struct {
	VisitedSteps    []string
	FinalIsComplete bool
	FinalNextIntent string
	StateToken      string
	AckToken        string
	CheckpointToken string
}

// RunScript starts workflowId with context, rehydrates once to obtain an
// ack token, then acks each scripted step in order (passing the same context
// to every advance so run-conditions can read it), recording every step id
// visited along the way. It fails the test immediately if a pending step
// doesn't match the script's expectation — scripts are meant to describe an
// exact expected path, not search one out.
func (h *Harness) RunScript(workflowId string, context map[string]any, script []Step) RunResult {
	h.t.Helper()

	start, err := h.Orch.StartWorkflow(workflowId, context)
	if err != nil {
		h.t.Fatalf("kerneltest: StartWorkflow(%q): %v", workflowId, err)
	}

	result := RunResult{
		StateToken:      start.StateToken,
		AckToken:        start.AckToken,
		CheckpointToken: start.CheckpointToken,
	}
	if start.Pending != nil {
		result.VisitedSteps = append(result.VisitedSteps, start.Pending.StepId)
	}
	result.FinalIsComplete = start.IsComplete
	result.FinalNextIntent = start.NextIntent

	if start.IsComplete {
		return result
	}

	rehydrated, err := h.Orch.ContinueWorkflow(orchestrator.ContinueRequest{StateToken: start.StateToken})
	if err != nil {
		h.t.Fatalf("kerneltest: rehydrate: %v", err)
	}
	stateToken := start.StateToken
	ackToken := rehydrated.AckToken
	pendingStepId := ""
	if start.Pending != nil {
		pendingStepId = start.Pending.StepId
	}

	for i, step := range script {
		if start.Pending == nil && i == 0 {
			h.t.Fatalf("kerneltest: script step %d expects %q but workflow had no pending step", i, step.ExpectStepId)
		}
		if pendingStepId != step.ExpectStepId {
			h.t.Fatalf("kerneltest: script step %d expects %q pending, got %q", i, step.ExpectStepId, pendingStepId)
		}

		var out *orchestrator.Output
		if step.NotesMarkdown != "" {
			out = &orchestrator.Output{NotesMarkdown: step.NotesMarkdown}
		}
		res, err := h.Orch.ContinueWorkflow(orchestrator.ContinueRequest{
			StateToken: stateToken,
			AckToken:   ackToken,
			Context:    context,
			Output:     out,
		})
		if err != nil {
			h.t.Fatalf("kerneltest: advance past %q: %v", step.ExpectStepId, err)
		}
		if res.Kind != "ok" {
			h.t.Fatalf("kerneltest: advance past %q: got kind %q, blockers %v", step.ExpectStepId, res.Kind, res.Blockers)
		}

		stateToken, ackToken = res.StateToken, res.AckToken
		result.StateToken, result.AckToken, result.CheckpointToken = res.StateToken, res.AckToken, res.CheckpointToken
		result.FinalIsComplete = res.IsComplete
		result.FinalNextIntent = res.NextIntent
		pendingStepId = ""
		if res.Pending != nil {
			result.VisitedSteps = append(result.VisitedSteps, res.Pending.StepId)
			pendingStepId = res.Pending.StepId
		}
	}

	return result
}
