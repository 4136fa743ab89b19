package orchestrator

import (
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/crypto"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/ids"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/interpreter"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/kerrors"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/session"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/token"
)

// ContinueWorkflow validates the token pair and dispatches to rehydrate
// (ackToken absent) or advance/replay (ackToken present). Any lower-level
// code surfaced by the session/store layers is translated to the outward
// taxonomy before it reaches the caller.
func (o *Orchestrator) ContinueWorkflow(req ContinueRequest) (*ContinueResult, error) {
	result, err := o.continueWorkflow(req)
	if err != nil {
		return nil, toOutward(err)
	}
	return result, nil
}

func (o *Orchestrator) continueWorkflow(req ContinueRequest) (*ContinueResult, error) {
	statePayload, err := token.Verify(o.signKey, req.StateToken, token.KindState)
	if err != nil {
		return nil, err
	}

	context, err := validateContext(req.Context)
	if err != nil {
		return nil, err
	}

	if req.AckToken == "" {
		return o.rehydrate(req.StateToken, statePayload)
	}

	ackPayload, err := token.Verify(o.signKey, req.AckToken, token.KindAck)
	if err != nil {
		return nil, err
	}
	if err := token.AssertScopeMatches(statePayload, ackPayload); err != nil {
		return nil, err
	}

	return o.advanceOrReplay(req.StateToken, statePayload, ackPayload, context, req.Output)
}

func (o *Orchestrator) rehydrate(origStateToken string, state token.Payload) (*ContinueResult, error) {
	truth, err := o.gate.LoadHealthy(state.SessionId)
	if err != nil {
		return nil, err
	}

	runEvt, ok := truth.RunStarted(state.RunId)
	if !ok {
		return nil, kerrors.Newf(kerrors.CodeTokenUnknownNode, "orchestrator: rehydrate: unknown run %q", state.RunId)
	}
	if runWorkflowHash(runEvt) != state.WorkflowHash {
		return nil, kerrors.New(kerrors.CodeTokenWorkflowHashMismatch, "orchestrator: rehydrate: run's workflowHash does not match state token")
	}

	nodeEvt, ok := truth.NodeCreated(state.NodeId)
	if !ok {
		return nil, kerrors.Newf(kerrors.CodeTokenUnknownNode, "orchestrator: rehydrate: unknown node %q", state.NodeId)
	}
	if nodeWorkflowHash(nodeEvt) != state.WorkflowHash {
		return nil, kerrors.New(kerrors.CodeTokenWorkflowHashMismatch, "orchestrator: rehydrate: node's workflowHash does not match state token")
	}

	wf, err := o.pinnedWorkflowDefinition(state.WorkflowHash)
	if err != nil {
		return nil, err
	}

	engineState, err := o.loadSnapshot(nodeSnapshotRef(nodeEvt))
	if err != nil {
		return nil, err
	}

	attemptId := ids.NewAttemptId()
	_, ackTok, checkpointTok, err := o.mintTriple(state.SessionId, state.RunId, state.NodeId, state.WorkflowHash, attemptId)
	if err != nil {
		return nil, err
	}

	isComplete := engineState.Kind == interpreter.StateComplete
	result := &ContinueResult{
		Kind:            "ok",
		StateToken:      origStateToken,
		AckToken:        ackTok,
		CheckpointToken: checkpointTok,
		IsComplete:      isComplete,
	}
	if engineState.Pending != nil {
		result.Pending = stepMetadata(wf, *engineState.Pending)
	}
	result.NextIntent = nextIntent(isComplete, requiresConfirmation(wf, engineState.Pending), true)
	return result, nil
}

func (o *Orchestrator) advanceOrReplay(origStateToken string, state, ack token.Payload, context map[string]any, output *Output) (*ContinueResult, error) {
	dedupeKey := "advance_recorded:" + string(state.SessionId) + ":" + string(state.NodeId) + ":" + string(ack.AttemptId)

	fastTruth, err := o.gate.LoadHealthy(state.SessionId)
	if err != nil {
		return nil, err
	}
	if fastTruth.HasDedupeKey(dedupeKey) {
		return o.replay(origStateToken, state, fastTruth, dedupeKey)
	}

	var result *ContinueResult
	err = o.gate.WithHealthySessionLock(state.SessionId, func(w *session.Witness, log *session.Log, truth *session.Truth) error {
		if truth.HasDedupeKey(dedupeKey) {
			r, rerr := o.replay(origStateToken, state, truth, dedupeKey)
			result = r
			return rerr
		}

		r, appended, aerr := o.doAdvance(w, log, truth, state, ack, context, output, dedupeKey)
		if aerr != nil {
			return aerr
		}
		if !appended {
			// Lost the race to a concurrent writer; fall through to replay
			// against the truth left behind by whoever won.
			reloaded, lerr := log.Load()
			if lerr != nil {
				return lerr
			}
			r, rerr := o.replay(origStateToken, state, reloaded, dedupeKey)
			result = r
			return rerr
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// doAdvance performs the core advance algorithm described in spec.md
// section 4.10: apply the acked step, compute the next pending step, and
// append the resulting event fan exactly once.
func (o *Orchestrator) doAdvance(w *session.Witness, log *session.Log, truth *session.Truth, state, ack token.Payload, context map[string]any, output *Output, dedupeKey string) (*ContinueResult, bool, error) {
	runEvt, ok := truth.RunStarted(state.RunId)
	if !ok {
		return nil, false, kerrors.Newf(kerrors.CodePreconditionFailed, "orchestrator: advance: unknown run %q", state.RunId)
	}
	if runWorkflowHash(runEvt) != state.WorkflowHash {
		return nil, false, kerrors.New(kerrors.CodeTokenWorkflowHashMismatch, "orchestrator: advance: run's workflowHash does not match state token")
	}
	nodeEvt, ok := truth.NodeCreated(state.NodeId)
	if !ok {
		return nil, false, kerrors.Newf(kerrors.CodePreconditionFailed, "orchestrator: advance: unknown node %q", state.NodeId)
	}
	if nodeWorkflowHash(nodeEvt) != state.WorkflowHash {
		return nil, false, kerrors.New(kerrors.CodeTokenWorkflowHashMismatch, "orchestrator: advance: node's workflowHash does not match state token")
	}

	wf, err := o.pinnedWorkflowDefinition(state.WorkflowHash)
	if err != nil {
		return nil, false, err
	}

	curState, err := o.loadSnapshot(nodeSnapshotRef(nodeEvt))
	if err != nil {
		return nil, false, err
	}
	if curState.Kind != interpreter.StateRunning || curState.Pending == nil {
		return nil, false, kerrors.Newf(kerrors.CodePreconditionFailed, "orchestrator: advance: node %q has no pending step", state.NodeId)
	}

	ackedState, err := interpreter.ApplyEvent(curState, *curState.Pending)
	if err != nil {
		return nil, false, err
	}
	newState, newPending, isComplete, err := interpreter.Next(wf, ackedState, context)
	if err != nil {
		return nil, false, err
	}

	newSnapshotRef, err := o.snapshots.Put(newState.ToPayload())
	if err != nil {
		return nil, false, err
	}

	toNodeId := ids.NewNodeId()
	causeKind := "intentional_fork"
	if _, hasEdge := truth.OutgoingEdge(state.NodeId); hasEdge {
		causeKind = "non_tip_advance"
	}

	base := truth.NextEventIndex
	advanceRecorded := session.Event{
		EventIndex: base,
		EventId:    ids.NewEventId(),
		SessionId:  state.SessionId,
		RunId:      state.RunId,
		NodeId:     state.NodeId,
		Kind:       session.KindAdvanceRecorded,
		DedupeKey:  dedupeKey,
		Data: map[string]any{
			"attemptId": string(ack.AttemptId),
			"intent":    "ack_pending",
			"outcome": map[string]any{
				"kind":     "advanced",
				"toNodeId": string(toNodeId),
			},
		},
	}
	childNodeCreated := session.Event{
		EventIndex: base + 1,
		EventId:    ids.NewEventId(),
		SessionId:  state.SessionId,
		RunId:      state.RunId,
		NodeId:     toNodeId,
		Kind:       session.KindNodeCreated,
		DedupeKey:  "node_created:" + string(toNodeId),
		Data: map[string]any{
			"nodeKind":     "step",
			"parentNodeId": string(state.NodeId),
			"workflowHash": state.WorkflowHash,
			"snapshotRef":  newSnapshotRef.Hex(),
		},
	}
	edgeCreated := session.Event{
		EventIndex: base + 2,
		EventId:    ids.NewEventId(),
		SessionId:  state.SessionId,
		Kind:       session.KindEdgeCreated,
		DedupeKey:  "edge_created:" + string(state.NodeId) + ":" + string(toNodeId),
		Data: map[string]any{
			"edgeKind":   "acked_step",
			"fromNodeId": string(state.NodeId),
			"toNodeId":   string(toNodeId),
			"cause": map[string]any{
				"kind":    causeKind,
				"eventId": string(advanceRecorded.EventId),
			},
		},
	}

	events := []session.Event{advanceRecorded, childNodeCreated, edgeCreated}
	if output != nil && output.NotesMarkdown != "" {
		outputAppended := session.Event{
			EventIndex: base + 3,
			EventId:    ids.NewEventId(),
			SessionId:  state.SessionId,
			NodeId:     state.NodeId, // attached to the parent node, not the child
			Kind:       session.KindNodeOutputAppended,
			DedupeKey:  "node_output_appended:out_recap_" + string(ack.AttemptId),
			Data: map[string]any{
				"outputId":      "out_recap_" + string(ack.AttemptId),
				"outputChannel": "recap",
				"payload": map[string]any{
					"notes":         truncateNotes(output.NotesMarkdown),
					"notesMarkdown": truncateNotes(output.NotesMarkdown),
				},
			},
		}
		events = append(events, outputAppended)
	}

	batch := session.Batch{
		Events: events,
		SnapshotPins: []session.SnapshotPin{
			{SnapshotRef: newSnapshotRef.Hex(), EventIndex: base + 1, CreatedByEventId: string(childNodeCreated.EventId)},
		},
	}
	_, appended, err := log.Append(w, batch)
	if err != nil {
		return nil, false, err
	}
	if !appended {
		return nil, false, nil
	}

	nextAttemptId := ids.AttemptIdForNextNode(ack.AttemptId)
	stateTok, ackTok, checkpointTok, err := o.mintTriple(state.SessionId, state.RunId, toNodeId, state.WorkflowHash, nextAttemptId)
	if err != nil {
		return nil, false, err
	}

	result := &ContinueResult{
		Kind:            "ok",
		StateToken:      stateTok,
		AckToken:        ackTok,
		CheckpointToken: checkpointTok,
		IsComplete:      isComplete,
		NextIntent:      nextIntent(isComplete, requiresConfirmation(wf, newPending), false),
	}
	if newPending != nil {
		result.Pending = stepMetadata(wf, *newPending)
	}
	return result, true, nil
}

// replay re-derives the response for an already-recorded advance_recorded
// event, minting deterministic next tokens so repeated calls with the same
// ackToken are byte-identical (L1).
func (o *Orchestrator) replay(origStateToken string, state token.Payload, truth *session.Truth, dedupeKey string) (*ContinueResult, error) {
	recorded, ok := truth.AdvanceRecorded(dedupeKey)
	if !ok {
		return nil, kerrors.New(kerrors.CodeInvariantViolation, "orchestrator: replay: dedupe key reported present but advance_recorded not found")
	}

	outcome, _ := recorded.Data["outcome"].(map[string]any)
	outcomeKind, _ := outcome["kind"].(string)
	attemptId, _ := recorded.Data["attemptId"].(string)

	wf, err := o.pinnedWorkflowDefinition(state.WorkflowHash)
	if err != nil {
		return nil, err
	}

	if outcomeKind == "blocked" {
		curNode, ok := truth.NodeCreated(state.NodeId)
		if !ok {
			return nil, kerrors.New(kerrors.CodeInvariantViolation, "orchestrator: replay: blocked node missing node_created")
		}
		engineState, err := o.loadSnapshot(nodeSnapshotRef(curNode))
		if err != nil {
			return nil, err
		}
		_, ackTok, checkpointTok, err := o.mintTriple(state.SessionId, state.RunId, state.NodeId, state.WorkflowHash, ids.AttemptId(attemptId))
		if err != nil {
			return nil, err
		}
		blockers := blockersFromOutcome(outcome)
		result := &ContinueResult{
			Kind:            "blocked",
			StateToken:      origStateToken,
			AckToken:        ackTok,
			CheckpointToken: checkpointTok,
			IsComplete:      engineState.Kind == interpreter.StateComplete,
			Blockers:        blockers,
			NextIntent:      nextIntent(false, false, false),
		}
		if engineState.Pending != nil {
			result.Pending = stepMetadata(wf, *engineState.Pending)
		}
		return result, nil
	}

	toNodeId, _ := outcome["toNodeId"].(string)
	childNode, ok := truth.NodeCreated(ids.NodeId(toNodeId))
	if !ok {
		return nil, kerrors.Newf(kerrors.CodeInvariantViolation, "orchestrator: replay: I6 violated: child node %q missing", toNodeId)
	}
	engineState, err := o.loadSnapshot(nodeSnapshotRef(childNode))
	if err != nil {
		return nil, err
	}

	nextAttemptId := ids.AttemptIdForNextNode(ids.AttemptId(attemptId))
	stateTok, ackTok, checkpointTok, err := o.mintTriple(state.SessionId, state.RunId, ids.NodeId(toNodeId), state.WorkflowHash, nextAttemptId)
	if err != nil {
		return nil, err
	}

	isComplete := engineState.Kind == interpreter.StateComplete
	result := &ContinueResult{
		Kind:            "ok",
		StateToken:      stateTok,
		AckToken:        ackTok,
		CheckpointToken: checkpointTok,
		IsComplete:      isComplete,
		NextIntent:      nextIntent(isComplete, requiresConfirmation(wf, engineState.Pending), false),
	}
	if engineState.Pending != nil {
		result.Pending = stepMetadata(wf, *engineState.Pending)
	}
	return result, nil
}

func blockersFromOutcome(outcome map[string]any) []string {
	raw, _ := outcome["blockers"].([]any)
	blockers := make([]string, 0, len(raw))
	for _, b := range raw {
		if s, ok := b.(string); ok {
			blockers = append(blockers, s)
		}
	}
	return blockers
}

func (o *Orchestrator) pinnedWorkflowDefinition(workflowHash string) (interpreter.WorkflowDefinition, error) {
	pw, ok, err := o.pins.Get(crypto.Digest("sha256:" + workflowHash))
	if err != nil {
		return interpreter.WorkflowDefinition{}, err
	}
	if !ok {
		return interpreter.WorkflowDefinition{}, kerrors.Newf(kerrors.CodeTokenWorkflowHashMismatch, "orchestrator: pinned workflow %q not found", workflowHash)
	}
	return interpreter.FromDefinitionMap(pw.Definition)
}

func (o *Orchestrator) loadSnapshot(ref string) (interpreter.State, error) {
	payload, ok, err := o.snapshots.Get(crypto.Digest("sha256:" + ref))
	if err != nil {
		return interpreter.State{}, err
	}
	if !ok {
		return interpreter.State{}, kerrors.Newf(kerrors.CodeInvariantViolation, "orchestrator: snapshot %q not found", ref)
	}
	state, ok := interpreter.StateFromPayload(payload)
	if !ok {
		return interpreter.State{}, kerrors.New(kerrors.CodeInvariantViolation, "orchestrator: snapshot payload is not a valid engine state")
	}
	return state, nil
}

func runWorkflowHash(e session.Event) string {
	s, _ := e.Data["workflowHash"].(string)
	return s
}

func nodeWorkflowHash(e session.Event) string {
	s, _ := e.Data["workflowHash"].(string)
	return s
}

func nodeSnapshotRef(e session.Event) string {
	s, _ := e.Data["snapshotRef"].(string)
	return s
}
