package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/provider"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, string) {
	t.Helper()
	root := t.TempDir()
	provDir := filepath.Join(root, "workflows")
	if err := os.MkdirAll(provDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	doc := "id: demo\nname: Demo\nversion: \"1\"\nsteps:\n" +
		"  - stepId: s1\n    title: S1\n    prompt: do s1\n" +
		"  - stepId: s2\n    title: S2\n    prompt: do s2\n"
	if err := os.WriteFile(filepath.Join(provDir, "demo.yaml"), []byte(doc), 0o644); err != nil {
		t.Fatalf("write workflow fixture: %v", err)
	}

	o, err := Open(filepath.Join(root, "data"), provider.NewLocalFileProvider(provDir))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return o, root
}

func TestStartWorkflowReturnsFirstPendingStep(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	res, err := o.StartWorkflow("demo", nil)
	if err != nil {
		t.Fatalf("StartWorkflow: %v", err)
	}
	if res.IsComplete {
		t.Fatal("expected not complete")
	}
	if res.Pending == nil || res.Pending.StepId != "s1" {
		t.Fatalf("got pending %+v, want s1", res.Pending)
	}
	if res.StateToken == "" || res.AckToken == "" || res.CheckpointToken == "" {
		t.Fatal("expected all three tokens to be minted")
	}
}

func TestStartWorkflowUnknownIdIsNotFound(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	_, err := o.StartWorkflow("does-not-exist", nil)
	if err == nil {
		t.Fatal("expected NOT_FOUND")
	}
}

// TestRehydrateEchoesStateTokenAndMintsFreshAck covers S2: continuing with
// the state token but no ack token must echo the same state token, mint a
// new ack token, and append no events.
func TestRehydrateEchoesStateTokenAndMintsFreshAck(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	start, err := o.StartWorkflow("demo", nil)
	if err != nil {
		t.Fatalf("StartWorkflow: %v", err)
	}

	res, err := o.ContinueWorkflow(ContinueRequest{StateToken: start.StateToken})
	if err != nil {
		t.Fatalf("ContinueWorkflow (rehydrate): %v", err)
	}
	if res.StateToken != start.StateToken {
		t.Fatalf("got stateToken %q, want unchanged %q", res.StateToken, start.StateToken)
	}
	if res.AckToken == start.AckToken {
		t.Fatal("expected a freshly minted ack token")
	}
	if res.Pending == nil || res.Pending.StepId != "s1" {
		t.Fatalf("got pending %+v, want s1 unchanged", res.Pending)
	}
	if res.NextIntent != intentRehydrateOnly {
		t.Fatalf("got nextIntent %q, want rehydrate_only", res.NextIntent)
	}
}

// TestAdvanceMovesToNextStepAndReplayIsIdempotent covers S3 and L1.
func TestAdvanceMovesToNextStepAndReplayIsIdempotent(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	start, err := o.StartWorkflow("demo", nil)
	if err != nil {
		t.Fatalf("StartWorkflow: %v", err)
	}
	rehydrated, err := o.ContinueWorkflow(ContinueRequest{StateToken: start.StateToken})
	if err != nil {
		t.Fatalf("rehydrate: %v", err)
	}

	req := ContinueRequest{StateToken: start.StateToken, AckToken: rehydrated.AckToken}
	first, err := o.ContinueWorkflow(req)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if first.Pending == nil || first.Pending.StepId != "s2" {
		t.Fatalf("got pending %+v, want s2", first.Pending)
	}

	second, err := o.ContinueWorkflow(req)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if second.StateToken != first.StateToken || second.AckToken != first.AckToken || second.CheckpointToken != first.CheckpointToken {
		t.Fatalf("replay not byte-identical: first=%+v second=%+v", first, second)
	}
}

// TestFullRunCompletes covers S4: acking the final step completes the run.
func TestFullRunCompletes(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	start, err := o.StartWorkflow("demo", nil)
	if err != nil {
		t.Fatalf("StartWorkflow: %v", err)
	}
	rehydrated, err := o.ContinueWorkflow(ContinueRequest{StateToken: start.StateToken})
	if err != nil {
		t.Fatalf("rehydrate: %v", err)
	}
	afterS1, err := o.ContinueWorkflow(ContinueRequest{StateToken: start.StateToken, AckToken: rehydrated.AckToken})
	if err != nil {
		t.Fatalf("advance past s1: %v", err)
	}
	afterS2, err := o.ContinueWorkflow(ContinueRequest{StateToken: afterS1.StateToken, AckToken: afterS1.AckToken})
	if err != nil {
		t.Fatalf("advance past s2: %v", err)
	}
	if !afterS2.IsComplete || afterS2.Pending != nil {
		t.Fatalf("got %+v, want complete with no pending", afterS2)
	}
	if afterS2.NextIntent != intentComplete {
		t.Fatalf("got nextIntent %q, want complete", afterS2.NextIntent)
	}
}

func TestContinueWorkflowRejectsTamperedStateToken(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	start, err := o.StartWorkflow("demo", nil)
	if err != nil {
		t.Fatalf("StartWorkflow: %v", err)
	}
	tampered := start.StateToken[:len(start.StateToken)-1] + "0"
	_, err = o.ContinueWorkflow(ContinueRequest{StateToken: tampered})
	if err == nil {
		t.Fatal("expected tampered state token to be rejected")
	}
}

func TestContinueWorkflowRejectsCrossSessionScopeMismatch(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	a, err := o.StartWorkflow("demo", nil)
	if err != nil {
		t.Fatalf("StartWorkflow a: %v", err)
	}
	b, err := o.StartWorkflow("demo", nil)
	if err != nil {
		t.Fatalf("StartWorkflow b: %v", err)
	}

	_, err = o.ContinueWorkflow(ContinueRequest{StateToken: a.StateToken, AckToken: b.AckToken})
	if err == nil {
		t.Fatal("expected TOKEN_SCOPE_MISMATCH across sessions")
	}
}

func TestStartWorkflowRejectsOversizedContext(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	big := make(map[string]any, 1)
	filler := make([]byte, maxContextBytes+1)
	for i := range filler {
		filler[i] = 'a'
	}
	big["filler"] = string(filler)

	_, err := o.StartWorkflow("demo", big)
	if err == nil {
		t.Fatal("expected VALIDATION_ERROR for oversized context")
	}
}
