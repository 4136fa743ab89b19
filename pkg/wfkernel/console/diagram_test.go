package console

import (
	"strings"
	"testing"

	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/interpreter"
)

func TestGenerateMermaid_LinearFlow(t *testing.T) {
	wf := interpreter.WorkflowDefinition{
		Id: "linear-test",
		Steps: []interpreter.StepDefinition{
			{StepId: "step-1", Title: "Run query"},
			{StepId: "step-2", Title: "Verify output"},
		},
	}

	out, err := Generate(wf, FormatMermaid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "flowchart TD") {
		t.Error("missing flowchart header")
	}
	if !strings.Contains(out, "step_1") {
		t.Error("missing step-1 node")
	}
	if !strings.Contains(out, "step_1 --> step_2") {
		t.Errorf("missing sequential edge, got:\n%s", out)
	}
}

func TestGenerateMermaid_ConditionalEdgeLabel(t *testing.T) {
	wf := interpreter.WorkflowDefinition{
		Steps: []interpreter.StepDefinition{
			{StepId: "a", Title: "A"},
			{StepId: "b", Title: "B", RunCondition: "ctx.flag == true"},
		},
	}

	out, err := Generate(wf, FormatMermaid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "ctx.flag == true") {
		t.Errorf("missing run-condition edge label, got:\n%s", out)
	}
}

func TestGenerateASCII_Loop(t *testing.T) {
	wf := interpreter.WorkflowDefinition{
		Steps: []interpreter.StepDefinition{
			{
				StepId: "each-item",
				Title:  "Process items",
				Loop: &interpreter.LoopDef{
					LoopId: "items",
					Body:   []interpreter.StepDefinition{{StepId: "handle", Title: "Handle item"}},
					Source: interpreter.IterationSource{Kind: interpreter.IterationItems},
				},
			},
		},
	}

	out, err := Generate(wf, FormatASCII)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "loop items over items") {
		t.Errorf("missing loop annotation, got:\n%s", out)
	}
	if !strings.Contains(out, "handle") {
		t.Errorf("missing loop body step, got:\n%s", out)
	}
}

func TestGenerate_UnsupportedFormat(t *testing.T) {
	_, err := Generate(interpreter.WorkflowDefinition{}, Format("svg"))
	if err == nil {
		t.Fatal("expected an error for an unsupported format")
	}
}
