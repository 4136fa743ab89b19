package kerneltest

import "testing"

func TestRunScriptWalksToCompletion(t *testing.T) {
	h := New(t)
	h.WriteWorkflow("onboarding", "id: onboarding\nname: Onboarding\nversion: \"1\"\nsteps:\n"+
		"  - stepId: collect_info\n    title: Collect info\n"+
		"  - stepId: send_welcome\n    title: Send welcome\n")

	result := h.RunScript("onboarding", nil, []Step{
		{ExpectStepId: "collect_info", NotesMarkdown: "gathered basic info"},
		{ExpectStepId: "send_welcome"},
	})

	spec := Spec{
		MustReach:      []string{"collect_info", "send_welcome"},
		ExpectComplete: true,
	}
	assertions := Evaluate(spec, result)
	if HasFailures(assertions) {
		for _, a := range assertions {
			if !a.Passed {
				t.Errorf("FAIL [%s] %s", a.Type, a.Message)
			}
		}
	}
}

func TestRunScriptSkipsConditionalStep(t *testing.T) {
	h := New(t)
	h.WriteWorkflow("conditional", "id: conditional\nname: Conditional\nversion: \"1\"\nsteps:\n"+
		"  - stepId: always\n    title: Always\n"+
		"  - stepId: maybe\n    title: Maybe\n    runCondition: \"ctx.flag == true\"\n"+
		"  - stepId: finish\n    title: Finish\n")

	result := h.RunScript("conditional", map[string]any{"ctx": map[string]any{"flag": false}}, []Step{
		{ExpectStepId: "always"},
		{ExpectStepId: "finish"},
	})

	spec := Spec{
		MustReach:      []string{"always", "finish"},
		MustNotReach:   []string{"maybe"},
		ExpectComplete: true,
	}
	assertions := Evaluate(spec, result)
	if HasFailures(assertions) {
		for _, a := range assertions {
			if !a.Passed {
				t.Errorf("FAIL [%s] %s", a.Type, a.Message)
			}
		}
	}
}
