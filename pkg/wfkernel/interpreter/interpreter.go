package interpreter

import (
	"strings"

	"github.com/expr-lang/expr"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/kerrors"
)

// ApplyEvent applies a step_completed event to state: the completed
// instance must equal state.Pending exactly, or the transition is illegal.
func ApplyEvent(state State, completed StepInstance) (State, error) {
	if state.Kind != StateRunning || state.Pending == nil {
		return state, kerrors.New(kerrors.CodeApplyFailed, "apply: no step is pending")
	}
	if state.Pending.Key() != completed.Key() {
		return state, kerrors.Newf(kerrors.CodeApplyFailed, "apply: completed instance %q does not match pending %q", completed.Key(), state.Pending.Key())
	}
	return State{
		Kind:      StateRunning,
		Completed: insertSorted(state.Completed, completed.Key()),
		LoopStack: nil,
		Pending:   nil,
	}, nil
}

// Next walks wf from the current position (derived purely from
// state.Completed) and selects the first step instance whose run-condition
// evaluates truthy against context plus loop variables. Deterministic given
// (wf, state, context).
func Next(wf WorkflowDefinition, state State, context map[string]any) (State, *StepInstance, bool, error) {
	completed := completedSet(state.Completed)
	env := cloneEnv(context)

	pending, err := walk(wf.Steps, nil, completed, env)
	if err != nil {
		return state, nil, false, err
	}
	if pending == nil {
		return State{Kind: StateComplete, Completed: state.Completed}, nil, true, nil
	}
	newState := State{
		Kind:      StateRunning,
		Completed: state.Completed,
		LoopStack: pending.LoopPath,
		Pending:   pending,
	}
	return newState, pending, false, nil
}

func walk(steps []StepDefinition, loopPath []LoopFrame, completed map[string]bool, env map[string]any) (*StepInstance, error) {
	for _, step := range steps {
		if step.Loop != nil {
			inst, err := walkLoop(step, loopPath, completed, env)
			if err != nil {
				return nil, err
			}
			if inst != nil {
				return inst, nil
			}
			continue
		}

		key := instanceKey(step.StepId, loopPath)
		if completed[key] {
			continue
		}
		ok, err := evalCondition(step.RunCondition, env)
		if err != nil {
			return nil, err
		}
		if ok {
			return &StepInstance{StepId: step.StepId, LoopPath: append([]LoopFrame{}, loopPath...)}, nil
		}
	}
	return nil, nil
}

func walkLoop(step StepDefinition, loopPath []LoopFrame, completed map[string]bool, env map[string]any) (*StepInstance, error) {
	loop := step.Loop
	items, err := resolveIterationSource(loop.Source, env)
	if err != nil {
		return nil, err
	}

	for i, item := range items {
		childEnv := cloneEnv(env)
		childEnv[loop.varName()] = item

		for bodyIdx, bodyStep := range loop.Body {
			frame := LoopFrame{LoopId: loop.LoopId, Iteration: i, BodyIndex: bodyIdx}
			childPath := append(append([]LoopFrame{}, loopPath...), frame)

			if bodyStep.Loop != nil {
				inst, err := walk([]StepDefinition{bodyStep}, childPath, completed, childEnv)
				if err != nil {
					return nil, err
				}
				if inst != nil {
					return inst, nil
				}
				continue
			}

			key := instanceKey(bodyStep.StepId, childPath)
			if completed[key] {
				continue
			}
			ok, err := evalCondition(bodyStep.RunCondition, childEnv)
			if err != nil {
				return nil, err
			}
			if ok {
				return &StepInstance{StepId: bodyStep.StepId, LoopPath: childPath}, nil
			}
		}
	}
	return nil, nil
}

func instanceKey(stepId string, loopPath []LoopFrame) string {
	return StepInstance{StepId: stepId, LoopPath: loopPath}.Key()
}

// evalCondition mirrors the teacher's evalCondition: an empty condition is
// always true; otherwise it is compiled and run with expr-lang, requiring a
// bool result.
func evalCondition(condStr string, env map[string]any) (bool, error) {
	condStr = strings.TrimSpace(condStr)
	if condStr == "" {
		return true, nil
	}
	program, err := expr.Compile(condStr, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, kerrors.Newf(kerrors.CodeNextFailed, "compile condition %q: %v", condStr, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, kerrors.Newf(kerrors.CodeNextFailed, "evaluate condition %q: %v", condStr, err)
	}
	result, ok := out.(bool)
	if !ok {
		return false, kerrors.Newf(kerrors.CodeNextFailed, "condition %q did not evaluate to a boolean", condStr)
	}
	return result, nil
}

// resolveIterationSource materializes a loop's iteration domain. A fixed
// count becomes [0,1,...,count-1]; items is used verbatim; an expr source
// is compiled against env and must evaluate to an array or a number.
func resolveIterationSource(src IterationSource, env map[string]any) ([]any, error) {
	switch src.Kind {
	case IterationFixed:
		items := make([]any, src.Count)
		for i := range items {
			items[i] = i
		}
		return items, nil
	case IterationItems:
		return src.Items, nil
	case IterationExpr:
		program, err := expr.Compile(src.Expr, expr.Env(env))
		if err != nil {
			return nil, kerrors.Newf(kerrors.CodeNextFailed, "compile loop source %q: %v", src.Expr, err)
		}
		out, err := expr.Run(program, env)
		if err != nil {
			return nil, kerrors.Newf(kerrors.CodeNextFailed, "loop source not present in context: %v", err)
		}
		switch v := out.(type) {
		case []any:
			return v, nil
		case float64, int, int64:
			var n int
			switch c := v.(type) {
			case float64:
				n = int(c)
			case int:
				n = c
			case int64:
				n = int(c)
			}
			items := make([]any, n)
			for i := range items {
				items[i] = i
			}
			return items, nil
		default:
			return nil, kerrors.Newf(kerrors.CodeNextFailed, "loop source %q must evaluate to an array or number, got %T", src.Expr, out)
		}
	default:
		return nil, kerrors.Newf(kerrors.CodeNextFailed, "unknown loop source kind %q", src.Kind)
	}
}

func cloneEnv(env map[string]any) map[string]any {
	out := make(map[string]any, len(env)+2)
	for k, v := range env {
		out[k] = v
	}
	return out
}
