// Package orchestrator implements the execution orchestrator (C12): the
// start_workflow and continue_workflow entry points that tie together the
// token codec, the session event log, the content-addressed stores, and
// the pure workflow interpreter into a durable, idempotent advance/replay
// state machine.
package orchestrator

import (
	"path/filepath"

	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/config"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/ids"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/interpreter"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/keyring"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/kerrors"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/provider"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/schema"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/session"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/store"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/token"
)

// maxNotesMarkdownBytes is the truncation ceiling for a recap note.
const maxNotesMarkdownBytes = 4096

// Orchestrator is the kernel's single entry point, rooted at a process-wide
// data directory. It is safe for concurrent use by multiple goroutines.
type Orchestrator struct {
	dataDir   string
	signKey   []byte
	gate      *session.Gate
	snapshots *store.SnapshotStore
	pins      *store.PinStore
	workflows provider.WorkflowProvider
}

// Open wires up the keyring, both content-addressed stores, and the
// healthy-session gate under dataDir using config defaults for the lock
// TTL, and returns an Orchestrator bound to workflows for workflowId
// resolution.
func Open(dataDir string, workflows provider.WorkflowProvider) (*Orchestrator, error) {
	return OpenWithConfig(config.Load(config.WithDataDir(dataDir)), workflows)
}

// OpenWithConfig is Open with a fully resolved config.Config, used by the
// CLI and MCP server so an explicit flag or WFKERNEL_LOCK_TTL_MS takes
// effect.
func OpenWithConfig(cfg config.Config, workflows provider.WorkflowProvider) (*Orchestrator, error) {
	key, err := keyring.Open(cfg.DataDir).Load()
	if err != nil {
		return nil, err
	}
	snapshots, err := store.OpenSnapshotStore(filepath.Join(cfg.DataDir, "snapshots"))
	if err != nil {
		return nil, err
	}
	pins, err := store.OpenPinStore(filepath.Join(cfg.DataDir, "pinned-workflows"))
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		dataDir:   cfg.DataDir,
		signKey:   key,
		gate:      session.NewGateWithTTL(cfg.DataDir, snapshots, cfg.LockTTL),
		snapshots: snapshots,
		pins:      pins,
		workflows: workflows,
	}, nil
}

// StartWorkflow resolves workflowId, pins its compiled definition, mints a
// fresh session/run/node, appends the opening event fan, and returns the
// token triple bound to the first pending step. Any lower-level code
// surfaced by the session/store layers is translated to the outward
// taxonomy before it reaches the caller.
func (o *Orchestrator) StartWorkflow(workflowId string, context map[string]any) (*StartResult, error) {
	result, err := o.startWorkflow(workflowId, context)
	if err != nil {
		return nil, toOutward(err)
	}
	return result, nil
}

func (o *Orchestrator) startWorkflow(workflowId string, context map[string]any) (*StartResult, error) {
	context, err := validateContext(context)
	if err != nil {
		return nil, err
	}

	defMap, err := o.workflows.GetWorkflowById(workflowId)
	if err != nil {
		return nil, kerrors.Newf(kerrors.CodeInternalError, "orchestrator: resolve workflow %q: %v", workflowId, err)
	}
	if defMap == nil {
		return nil, kerrors.Newf(kerrors.CodeNotFound, "orchestrator: workflow %q not found", workflowId)
	}
	if serr := schema.ValidateWorkflowDefinition(defMap); serr != nil {
		return nil, serr
	}

	wf, err := interpreter.FromDefinitionMap(defMap)
	if err != nil {
		if kerr, ok := err.(*kerrors.Error); ok {
			return nil, kerr
		}
		return nil, kerrors.Newf(kerrors.CodeInternalError, "orchestrator: parse workflow %q: %v", workflowId, err)
	}
	if len(wf.Steps) == 0 {
		return nil, kerrors.Newf(kerrors.CodePreconditionFailed, "orchestrator: workflow %q has no steps", workflowId)
	}

	workflowHashDigest, err := o.pins.Put(store.PinnedWorkflow{
		SchemaVersion: 1,
		SourceKind:    "v1_pinned",
		WorkflowId:    workflowId,
		Definition:    defMap,
	})
	if err != nil {
		return nil, err
	}
	workflowHash := workflowHashDigest.Hex()

	initState, pending, isComplete, err := interpreter.Next(wf, interpreter.State{Kind: interpreter.StateRunning}, context)
	if err != nil {
		return nil, err
	}

	snapshotRef, err := o.snapshots.Put(initState.ToPayload())
	if err != nil {
		return nil, err
	}

	sessionId := ids.NewSessionId()
	runId := ids.NewRunId()
	nodeId := ids.NewNodeId()
	attemptId := ids.NewAttemptId()

	err = o.gate.WithHealthySessionLock(sessionId, func(w *session.Witness, log *session.Log, truth *session.Truth) error {
		sessionCreated := session.Event{
			EventIndex: 0,
			EventId:    ids.NewEventId(),
			SessionId:  sessionId,
			Kind:       session.KindSessionCreated,
			DedupeKey:  "session_created:" + string(sessionId),
			Data:       map[string]any{},
		}
		runStarted := session.Event{
			EventIndex: 1,
			EventId:    ids.NewEventId(),
			SessionId:  sessionId,
			Kind:       session.KindRunStarted,
			RunId:      runId,
			DedupeKey:  "run_started:" + string(runId),
			Data: map[string]any{
				"workflowId":   workflowId,
				"workflowHash": workflowHash,
				"sourceKind":   "v1_pinned",
				"sourceRef":    workflowHash,
			},
		}
		nodeCreated := session.Event{
			EventIndex: 2,
			EventId:    ids.NewEventId(),
			SessionId:  sessionId,
			RunId:      runId,
			NodeId:     nodeId,
			Kind:       session.KindNodeCreated,
			DedupeKey:  "node_created:" + string(nodeId),
			Data: map[string]any{
				"nodeKind":     "step",
				"parentNodeId": nil,
				"workflowHash": workflowHash,
				"snapshotRef":  snapshotRef.Hex(),
			},
		}
		preferencesChanged := session.Event{
			EventIndex: 3,
			EventId:    ids.NewEventId(),
			SessionId:  sessionId,
			Kind:       session.KindPreferencesChanged,
			DedupeKey:  "preferences_baseline:" + string(sessionId),
			Data: map[string]any{
				"source": "system",
				"effective": map[string]any{
					"autonomy":   "guided",
					"riskPolicy": "conservative",
				},
			},
		}

		batch := session.Batch{
			Events: []session.Event{sessionCreated, runStarted, nodeCreated, preferencesChanged},
			SnapshotPins: []session.SnapshotPin{
				{SnapshotRef: snapshotRef.Hex(), EventIndex: 2, CreatedByEventId: string(nodeCreated.EventId)},
			},
		}
		_, _, aerr := log.Append(w, batch)
		return aerr
	})
	if err != nil {
		return nil, err
	}

	stateTok, ackTok, checkpointTok, err := o.mintTriple(sessionId, runId, nodeId, workflowHash, attemptId)
	if err != nil {
		return nil, err
	}

	result := &StartResult{
		StateToken:      stateTok,
		AckToken:        ackTok,
		CheckpointToken: checkpointTok,
		IsComplete:      isComplete,
		NextIntent:      nextIntent(isComplete, requiresConfirmation(wf, pending), false),
	}
	if pending != nil {
		result.Pending = stepMetadata(wf, *pending)
	}
	return result, nil
}

// mintTriple signs the state/ack/checkpoint token bound to (sessionId,
// runId, nodeId, workflowHash, attemptId).
func (o *Orchestrator) mintTriple(sessionId ids.SessionId, runId ids.RunId, nodeId ids.NodeId, workflowHash string, attemptId ids.AttemptId) (string, string, string, error) {
	stateTok, err := token.Sign(o.signKey, token.Payload{
		TokenVersion: 1,
		TokenKind:    token.KindState,
		SessionId:    sessionId,
		RunId:        runId,
		NodeId:       nodeId,
		WorkflowHash: workflowHash,
	})
	if err != nil {
		return "", "", "", err
	}
	ackTok, err := token.Sign(o.signKey, token.Payload{
		TokenVersion: 1,
		TokenKind:    token.KindAck,
		SessionId:    sessionId,
		RunId:        runId,
		NodeId:       nodeId,
		AttemptId:    attemptId,
	})
	if err != nil {
		return "", "", "", err
	}
	checkpointTok, err := token.Sign(o.signKey, token.Payload{
		TokenVersion: 1,
		TokenKind:    token.KindCheckpoint,
		SessionId:    sessionId,
		RunId:        runId,
		NodeId:       nodeId,
		AttemptId:    attemptId,
	})
	if err != nil {
		return "", "", "", err
	}
	return stateTok, ackTok, checkpointTok, nil
}

func requiresConfirmation(wf interpreter.WorkflowDefinition, pending *interpreter.StepInstance) bool {
	if pending == nil {
		return false
	}
	step, ok := wf.StepFromId(pending.StepId)
	return ok && step.RequireConfirmation
}

func stepMetadata(wf interpreter.WorkflowDefinition, inst interpreter.StepInstance) *PendingStep {
	step, ok := wf.StepFromId(inst.StepId)
	title := inst.StepId
	prompt := "Pending step: " + inst.StepId
	if ok {
		if step.Title != "" {
			title = step.Title
		}
		if step.Prompt != "" {
			prompt = step.Prompt
		}
	}
	return &PendingStep{StepId: inst.StepId, Title: title, Prompt: prompt}
}

func truncateNotes(s string) string {
	if len(s) <= maxNotesMarkdownBytes {
		return s
	}
	return s[:maxNotesMarkdownBytes]
}
