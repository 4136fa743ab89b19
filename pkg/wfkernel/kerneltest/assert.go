package kerneltest

import "fmt"

// Spec declares what to assert about a RunResult, mirroring the teacher's
// TestSpec shape (must_reach/must_not_reach/expected_status) generalized
// from tool-step visits onto workflow step visits.
type Spec struct {
	MustReach        []string
	MustNotReach     []string
	ExpectComplete   bool
	ExpectNextIntent string
}

// AssertionResult is the result of one assertion, mirroring the teacher's
// AssertionResult.
type AssertionResult struct {
	Type    string
	Key     string
	Passed  bool
	Message string
}

// Evaluate runs every assertion Spec declares against result.
func Evaluate(spec Spec, result RunResult) []AssertionResult {
	var out []AssertionResult

	visited := make(map[string]bool, len(result.VisitedSteps))
	for _, s := range result.VisitedSteps {
		visited[s] = true
	}

	for _, stepId := range spec.MustReach {
		passed := visited[stepId]
		out = append(out, AssertionResult{
			Type:    "must_reach",
			Key:     stepId,
			Passed:  passed,
			Message: fmt.Sprintf("must_reach %q: visited=%v", stepId, passed),
		})
	}
	for _, stepId := range spec.MustNotReach {
		passed := !visited[stepId]
		out = append(out, AssertionResult{
			Type:    "must_not_reach",
			Key:     stepId,
			Passed:  passed,
			Message: fmt.Sprintf("must_not_reach %q: visited=%v", stepId, visited[stepId]),
		})
	}
	if spec.ExpectComplete {
		out = append(out, AssertionResult{
			Type:    "expect_complete",
			Passed:  result.FinalIsComplete,
			Message: fmt.Sprintf("expect_complete: got isComplete=%v", result.FinalIsComplete),
		})
	}
	if spec.ExpectNextIntent != "" {
		passed := result.FinalNextIntent == spec.ExpectNextIntent
		out = append(out, AssertionResult{
			Type:    "expect_next_intent",
			Passed:  passed,
			Message: fmt.Sprintf("expect_next_intent: expected %q, got %q", spec.ExpectNextIntent, result.FinalNextIntent),
		})
	}
	return out
}

// HasFailures reports whether any assertion in results failed.
func HasFailures(results []AssertionResult) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
