// Package console renders a workflow's static shape and a session's
// recorded history for human inspection: a Mermaid/ASCII diagram of a
// WorkflowDefinition, and a bubbletea browser over a session's node
// timeline.
package console

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/interpreter"
)

// Format is the output diagram format.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatASCII   Format = "ascii"
)

// Generate produces a diagram string from a workflow's compiled definition.
func Generate(wf interpreter.WorkflowDefinition, format Format) (string, error) {
	switch format {
	case FormatMermaid:
		return generateMermaid(wf), nil
	case FormatASCII:
		return generateASCII(wf), nil
	default:
		return "", fmt.Errorf("unsupported diagram format: %s", format)
	}
}

func generateMermaid(wf interpreter.WorkflowDefinition) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")
	if len(wf.Steps) == 0 {
		return b.String()
	}
	b.WriteString("    START([Start]) --> " + safeID(wf.Steps[0].StepId) + "\n")
	writeMermaidSteps(&b, wf.Steps)
	return b.String()
}

func writeMermaidSteps(b *strings.Builder, steps []interpreter.StepDefinition) {
	for i, s := range steps {
		b.WriteString("    " + mermaidNode(s) + "\n")
		if s.Loop != nil {
			first := safeID(s.Loop.LoopId + "_enter")
			b.WriteString(fmt.Sprintf("    %s -->|%q| %s\n", safeID(s.StepId), "each "+loopVarName(s.Loop), first))
			b.WriteString("    " + first + "((" + escMermaid(s.Loop.LoopId) + "))\n")
			if len(s.Loop.Body) > 0 {
				b.WriteString(fmt.Sprintf("    %s --> %s\n", first, safeID(s.Loop.Body[0].StepId)))
				writeMermaidSteps(b, s.Loop.Body)
				last := s.Loop.Body[len(s.Loop.Body)-1]
				b.WriteString(fmt.Sprintf("    %s -->|%q| %s\n", safeID(last.StepId), "loop", first))
			}
		}
		if i < len(steps)-1 {
			next := steps[i+1]
			if next.RunCondition != "" {
				b.WriteString(fmt.Sprintf("    %s -->|%q| %s\n", safeID(s.StepId), truncate(next.RunCondition, 30), safeID(next.StepId)))
			} else {
				b.WriteString(fmt.Sprintf("    %s --> %s\n", safeID(s.StepId), safeID(next.StepId)))
			}
		}
	}
}

func mermaidNode(s interpreter.StepDefinition) string {
	id := safeID(s.StepId)
	title := s.Title
	if title == "" {
		title = s.StepId
	}
	icon := "○"
	if s.RequireConfirmation {
		icon = "⚑"
	}
	if s.Loop != nil {
		return fmt.Sprintf(`%s[/"%s %s"/]`, id, icon, escMermaid(title))
	}
	return fmt.Sprintf(`%s["%s %s"]`, id, icon, escMermaid(title))
}

func generateASCII(wf interpreter.WorkflowDefinition) string {
	var b strings.Builder
	if len(wf.Steps) == 0 {
		b.WriteString("(empty workflow)\n")
		return b.String()
	}
	writeASCIISteps(&b, wf.Steps, 0)
	return b.String()
}

func writeASCIISteps(b *strings.Builder, steps []interpreter.StepDefinition, depth int) {
	pad := strings.Repeat("  ", depth)
	for i, s := range steps {
		title := s.Title
		if title == "" {
			title = s.StepId
		}
		icon := "○"
		if s.RequireConfirmation {
			icon = "⚑"
		}
		line := fmt.Sprintf("%s[%s] %s %s", pad, s.StepId, icon, title)
		b.WriteString(line + "\n")
		if s.RunCondition != "" {
			b.WriteString(pad + "  if " + s.RunCondition + "\n")
		}
		if s.Loop != nil {
			b.WriteString(pad + "  loop " + s.Loop.LoopId + " over " + string(s.Loop.Source.Kind) + "\n")
			writeASCIISteps(b, s.Loop.Body, depth+2)
		}
		if i < len(steps)-1 {
			b.WriteString(pad + "  │\n")
		}
	}
}

func loopVarName(l *interpreter.LoopDef) string {
	if l.As != "" {
		return l.As
	}
	return l.LoopId
}

func safeID(id string) string {
	r := strings.NewReplacer("-", "_", " ", "_", ".", "_")
	return r.Replace(id)
}

func escMermaid(s string) string {
	s = strings.ReplaceAll(s, `"`, "#quot;")
	s = strings.ReplaceAll(s, `'`, "#apos;")
	return s
}

func truncate(s string, max int) string {
	if runewidth.StringWidth(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
