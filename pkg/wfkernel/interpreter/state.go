package interpreter

import (
	"sort"
	"strconv"
	"strings"
)

// StateKind is the closed set of execution-snapshot variants.
type StateKind string

const (
	StateInit     StateKind = "init"
	StateRunning  StateKind = "running"
	StateComplete StateKind = "complete"
)

// LoopFrame is one entry of a StepInstance's loop path: which loop, which
// iteration, which position in the loop's body.
type LoopFrame struct {
	LoopId    string `json:"loopId"`
	Iteration int    `json:"iteration"`
	BodyIndex int    `json:"bodyIndex"`
}

func (f LoopFrame) key() string {
	return f.LoopId + ":" + strconv.Itoa(f.Iteration) + ":" + strconv.Itoa(f.BodyIndex)
}

// StepInstance is a step identity within a run: its stepId plus the loop
// path that got it there, so the same stepId across different loop
// iterations is a distinct instance.
type StepInstance struct {
	StepId   string      `json:"stepId"`
	LoopPath []LoopFrame `json:"loopPath"`
}

// Key returns the canonical string identity of this instance, used for set
// membership in State.Completed.
func (si StepInstance) Key() string {
	var b strings.Builder
	b.WriteString(si.StepId)
	for _, f := range si.LoopPath {
		b.WriteByte('#')
		b.WriteString(f.key())
	}
	return b.String()
}

// State is an execution snapshot: which step instances are completed,
// which loop frames are currently open, and which step (if any) is
// pending.
type State struct {
	Kind      StateKind
	Completed []string
	LoopStack []LoopFrame
	Pending   *StepInstance
}

// Init returns the state.init variant.
func Init() State { return State{Kind: StateInit} }

func insertSorted(completed []string, key string) []string {
	i := sort.SearchStrings(completed, key)
	if i < len(completed) && completed[i] == key {
		return completed // already present, set semantics
	}
	out := make([]string, 0, len(completed)+1)
	out = append(out, completed[:i]...)
	out = append(out, key)
	out = append(out, completed[i:]...)
	return out
}

func completedSet(completed []string) map[string]bool {
	set := make(map[string]bool, len(completed))
	for _, k := range completed {
		set[k] = true
	}
	return set
}

// ToPayload converts State into the map[string]any shape the snapshot
// store persists.
func (s State) ToPayload() map[string]any {
	completed := make([]any, len(s.Completed))
	for i, c := range s.Completed {
		completed[i] = c
	}
	loopStack := make([]any, len(s.LoopStack))
	for i, f := range s.LoopStack {
		loopStack[i] = frameToPayload(f)
	}
	m := map[string]any{
		"kind":      string(s.Kind),
		"completed": completed,
		"loopStack": loopStack,
	}
	if s.Pending != nil {
		m["pending"] = instanceToPayload(*s.Pending)
	}
	return m
}

// StateFromPayload rebuilds a State from its decoded snapshot payload.
func StateFromPayload(v any) (State, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return State{}, false
	}
	s := State{}
	if k, ok := m["kind"].(string); ok {
		s.Kind = StateKind(k)
	}
	if arr, ok := m["completed"].([]any); ok {
		for _, c := range arr {
			if cs, ok := c.(string); ok {
				s.Completed = append(s.Completed, cs)
			}
		}
	}
	if arr, ok := m["loopStack"].([]any); ok {
		for _, fv := range arr {
			if f, ok := frameFromPayload(fv); ok {
				s.LoopStack = append(s.LoopStack, f)
			}
		}
	}
	if pv, ok := m["pending"]; ok && pv != nil {
		if inst, ok := instanceFromPayload(pv); ok {
			s.Pending = &inst
		}
	}
	return s, true
}

func frameToPayload(f LoopFrame) map[string]any {
	return map[string]any{
		"loopId":    f.LoopId,
		"iteration": float64(f.Iteration),
		"bodyIndex": float64(f.BodyIndex),
	}
}

func frameFromPayload(v any) (LoopFrame, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return LoopFrame{}, false
	}
	f := LoopFrame{}
	if s, ok := m["loopId"].(string); ok {
		f.LoopId = s
	}
	f.Iteration = asInt(m["iteration"])
	f.BodyIndex = asInt(m["bodyIndex"])
	return f, true
}

func instanceToPayload(si StepInstance) map[string]any {
	path := make([]any, len(si.LoopPath))
	for i, f := range si.LoopPath {
		path[i] = frameToPayload(f)
	}
	return map[string]any{"stepId": si.StepId, "loopPath": path}
}

func instanceFromPayload(v any) (StepInstance, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return StepInstance{}, false
	}
	si := StepInstance{}
	if s, ok := m["stepId"].(string); ok {
		si.StepId = s
	}
	if arr, ok := m["loopPath"].([]any); ok {
		for _, fv := range arr {
			if f, ok := frameFromPayload(fv); ok {
				si.LoopPath = append(si.LoopPath, f)
			}
		}
	}
	return si, true
}

func asInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
