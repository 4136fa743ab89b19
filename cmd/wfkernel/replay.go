package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/orchestrator"
)

var replayCmd = &cobra.Command{
	Use:   "replay <token-file>",
	Short: "Interactively step a session's ack token through continue_workflow",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

// replaySession holds the live token triple an operator steps through the
// REPL below, grounded on the teacher's debugger command loop.
type replaySession struct {
	orch    *orchestrator.Orchestrator
	out     io.Writer
	current *orchestrator.ContinueResult
	notes   string
}

func runReplay(cmd *cobra.Command, args []string) error {
	b, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read token file: %w", err)
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return fmt.Errorf("parse token file: %w", err)
	}
	if tf.StateToken == "" {
		return fmt.Errorf("token file is missing stateToken")
	}

	orch, err := openOrchestrator()
	if err != nil {
		return err
	}

	rs := &replaySession{
		orch: orch,
		out:  os.Stdout,
		current: &orchestrator.ContinueResult{
			Kind:       "ok",
			StateToken: tf.StateToken,
			AckToken:   tf.AckToken,
		},
	}

	completer := readline.NewPrefixCompleter(
		readline.PcItem("ack"),
		readline.PcItem("rehydrate"),
		readline.PcItem("notes"),
		readline.PcItem("print"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          rs.buildPrompt(),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(rs.out, "wfkernel replay — ack to advance, rehydrate to reload read-only, help for commands\n\n")

	for {
		rl.SetPrompt(rs.buildPrompt())
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Fields(line)

		switch parts[0] {
		case "ack", "a":
			rs.handleAck()
		case "rehydrate", "r":
			rs.handleRehydrate()
		case "notes":
			rs.notes = strings.TrimSpace(strings.TrimPrefix(line, parts[0]))
		case "print", "p":
			rs.handlePrint()
		case "help", "?":
			rs.handleHelp()
		case "quit", "q":
			fmt.Fprintf(rs.out, "Exiting replay.\n")
			return nil
		default:
			fmt.Fprintf(rs.out, "Unknown command: %q. Type 'help' for available commands.\n", parts[0])
		}
	}
}

func (rs *replaySession) buildPrompt() string {
	if rs.current == nil || rs.current.Pending == nil {
		return "wfkernel[done]> "
	}
	return fmt.Sprintf("wfkernel[%s]> ", rs.current.Pending.StepId)
}

func (rs *replaySession) advance(ackToken string) {
	var output *orchestrator.Output
	if rs.notes != "" {
		output = &orchestrator.Output{NotesMarkdown: rs.notes}
		rs.notes = ""
	}
	result, err := rs.orch.ContinueWorkflow(orchestrator.ContinueRequest{
		StateToken: rs.current.StateToken,
		AckToken:   ackToken,
		Output:     output,
	})
	if err != nil {
		fmt.Fprintf(rs.out, "Error: %v\n", err)
		return
	}
	rs.current = result
	rs.handlePrint()
}

func (rs *replaySession) handleAck() {
	if rs.current.AckToken == "" {
		fmt.Fprintf(rs.out, "no ack token on the current state; rehydrate first\n")
		return
	}
	rs.advance(rs.current.AckToken)
}

func (rs *replaySession) handleRehydrate() {
	rs.advance("")
}

func (rs *replaySession) handlePrint() {
	data, _ := json.MarshalIndent(rs.current, "", "  ")
	fmt.Fprintln(rs.out, string(data))
}

func (rs *replaySession) handleHelp() {
	fmt.Fprint(rs.out, `Commands:
  ack, a         acknowledge the pending step and advance
  rehydrate, r   reload the session read-only without acknowledging
  notes <text>   attach recap notes to the next ack
  print, p       print the current result
  help, ?        show this message
  quit, q        exit
`)
}
