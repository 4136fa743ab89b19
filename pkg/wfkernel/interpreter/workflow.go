// Package interpreter implements the pure workflow state machine (C11):
// applyEvent advances engine state by one completed step; next walks a
// pinned workflow to select the following pending step, entering and
// exiting loops by pushing and popping LoopFrames.
package interpreter

import (
	"encoding/json"

	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/ids"
)

// IterationKind is the closed set of loop iteration source kinds.
type IterationKind string

const (
	IterationFixed IterationKind = "fixed"
	IterationItems IterationKind = "items"
	IterationExpr  IterationKind = "expr"
)

// IterationSource describes how many times, and over what, a loop iterates.
type IterationSource struct {
	Kind  IterationKind `json:"kind"`
	Count int           `json:"count,omitempty"`
	Items []any         `json:"items,omitempty"`
	Expr  string        `json:"expr,omitempty"`
}

// LoopDef is a loop's body and iteration source. As names the variable each
// iteration's item (or index, for a fixed-count source) is bound to in the
// evaluation environment; it defaults to the loop id if empty.
type LoopDef struct {
	LoopId string           `json:"loopId"`
	As     string           `json:"as,omitempty"`
	Body   []StepDefinition `json:"body"`
	Source IterationSource  `json:"source"`
}

func (l LoopDef) varName() string {
	if l.As != "" {
		return l.As
	}
	return l.LoopId
}

// StepDefinition is one step of a compiled pinned workflow.
type StepDefinition struct {
	StepId              string   `json:"stepId"`
	Title               string   `json:"title,omitempty"`
	Prompt              string   `json:"prompt,omitempty"`
	RequireConfirmation bool     `json:"requireConfirmation,omitempty"`
	RunCondition        string   `json:"runCondition,omitempty"`
	Loop                *LoopDef `json:"loop,omitempty"`
}

// WorkflowDefinition is the ordered sequence of steps an implementer's
// external workflow provider resolves a workflowId to.
type WorkflowDefinition struct {
	Id      string           `json:"id"`
	Name    string           `json:"name"`
	Version string           `json:"version"`
	Steps   []StepDefinition `json:"steps"`
}

// FromDefinitionMap rebuilds a WorkflowDefinition from the generic
// map[string]any a YAML/JSON loader produced. This is a convenience
// re-marshal through encoding/json, not a canonicalization step — the
// pinned workflow's hash is computed separately, over the pinned envelope
// that wraps the raw definition map, never over this typed shape.
func FromDefinitionMap(m map[string]any) (WorkflowDefinition, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return WorkflowDefinition{}, err
	}
	var wf WorkflowDefinition
	if err := json.Unmarshal(b, &wf); err != nil {
		return WorkflowDefinition{}, err
	}
	if err := checkStepCharsets(wf.Steps); err != nil {
		return WorkflowDefinition{}, err
	}
	return wf, nil
}

// checkStepCharsets walks steps (and nested loop bodies) enforcing that
// every externally-sourced stepId/loopId is drawn from the delimiter-safe
// charset ids.Valid requires — those ids get concatenated with "#"/":" to
// build the completed-set keys the interpreter's canonical-sorted unique
// set relies on for determinism, so a stray delimiter character in one
// would silently corrupt it.
func checkStepCharsets(steps []StepDefinition) error {
	for _, s := range steps {
		if err := ids.CheckCharset("stepId", s.StepId); err != nil {
			return err
		}
		if s.Loop != nil {
			if err := ids.CheckCharset("loopId", s.Loop.LoopId); err != nil {
				return err
			}
			if err := checkStepCharsets(s.Loop.Body); err != nil {
				return err
			}
		}
	}
	return nil
}

// StepFromId finds a step by id anywhere in the workflow, including inside
// loop bodies, for step-metadata extraction (title/prompt defaults).
func (wf WorkflowDefinition) StepFromId(stepId string) (StepDefinition, bool) {
	return findStep(wf.Steps, stepId)
}

func findStep(steps []StepDefinition, stepId string) (StepDefinition, bool) {
	for _, s := range steps {
		if s.StepId == stepId {
			return s, true
		}
		if s.Loop != nil {
			if found, ok := findStep(s.Loop.Body, stepId); ok {
				return found, ok
			}
		}
	}
	return StepDefinition{}, false
}
