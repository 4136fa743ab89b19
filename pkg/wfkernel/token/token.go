// Package token implements the kernel's signed token envelope (C10): parse,
// verify, sign, and scope-match state/ack/checkpoint tokens.
package token

import (
	"encoding/base32"
	"strings"

	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/canonical"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/crypto"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/ids"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/kerrors"
)

// Kind is the closed set of token kinds, one per reserved prefix.
type Kind string

const (
	KindState      Kind = "state"
	KindAck        Kind = "ack"
	KindCheckpoint Kind = "checkpoint"
)

const (
	prefixState      = "st.v1."
	prefixAck        = "ack.v1."
	prefixCheckpoint = "chk.v1."
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// Payload is the common envelope every token kind carries. WorkflowHash is
// populated only on state tokens; AttemptId only on ack/checkpoint tokens.
type Payload struct {
	TokenVersion int           `json:"tokenVersion"`
	TokenKind    Kind          `json:"tokenKind"`
	SessionId    ids.SessionId `json:"sessionId"`
	RunId        ids.RunId     `json:"runId"`
	NodeId       ids.NodeId    `json:"nodeId"`
	WorkflowHash string        `json:"workflowHash,omitempty"`
	AttemptId    ids.AttemptId `json:"attemptId,omitempty"`
}

func (p Payload) toCanonical() map[string]any {
	m := map[string]any{
		"tokenVersion": float64(p.TokenVersion),
		"tokenKind":    string(p.TokenKind),
		"sessionId":    string(p.SessionId),
		"runId":        string(p.RunId),
		"nodeId":       string(p.NodeId),
	}
	if p.WorkflowHash != "" {
		m["workflowHash"] = p.WorkflowHash
	}
	if p.AttemptId != "" {
		m["attemptId"] = string(p.AttemptId)
	}
	return m
}

func payloadFromCanonical(v any) (Payload, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return Payload{}, false
	}
	p := Payload{}
	if n, ok := m["tokenVersion"].(int64); ok {
		p.TokenVersion = int(n)
	} else if f, ok := m["tokenVersion"].(float64); ok {
		p.TokenVersion = int(f)
	}
	if s, ok := m["tokenKind"].(string); ok {
		p.TokenKind = Kind(s)
	}
	if s, ok := m["sessionId"].(string); ok {
		p.SessionId = ids.SessionId(s)
	}
	if s, ok := m["runId"].(string); ok {
		p.RunId = ids.RunId(s)
	}
	if s, ok := m["nodeId"].(string); ok {
		p.NodeId = ids.NodeId(s)
	}
	if s, ok := m["workflowHash"].(string); ok {
		p.WorkflowHash = s
	}
	if s, ok := m["attemptId"].(string); ok {
		p.AttemptId = ids.AttemptId(s)
	}
	return p, true
}

func prefixFor(kind Kind) string {
	switch kind {
	case KindState:
		return prefixState
	case KindAck:
		return prefixAck
	case KindCheckpoint:
		return prefixCheckpoint
	default:
		return ""
	}
}

func kindForPrefix(prefix string) (Kind, bool) {
	switch prefix {
	case prefixState:
		return KindState, true
	case prefixAck:
		return KindAck, true
	case prefixCheckpoint:
		return KindCheckpoint, true
	default:
		return "", false
	}
}

// Sign canonicalizes payload, computes its HMAC tag under key, and emits
// the token string "<prefix><base32(body)>.<base32(tag)>".
func Sign(key []byte, payload Payload) (string, error) {
	prefix := prefixFor(payload.TokenKind)
	if prefix == "" {
		return "", kerrors.Newf(kerrors.CodeInternalError, "token: unknown token kind %q", payload.TokenKind)
	}
	body, err := canonical.Marshal(payload.toCanonical())
	if err != nil {
		return "", kerrors.Newf(kerrors.CodeInternalError, "token: canonicalize payload: %v", err)
	}
	bodyEncoded := b32.EncodeToString(body)
	tag := crypto.Sign(key, []byte(prefix+bodyEncoded))
	return prefix + bodyEncoded + "." + b32.EncodeToString([]byte(tag)), nil
}

// Parse decodes prefix, body, and tag from a token string and canonical-
// JSON-decodes the payload, without verifying the signature.
func Parse(tok string) (Payload, string, string, error) {
	for _, prefix := range []string{prefixState, prefixAck, prefixCheckpoint} {
		if !strings.HasPrefix(tok, prefix) {
			continue
		}
		rest := tok[len(prefix):]
		parts := strings.SplitN(rest, ".", 2)
		if len(parts) != 2 {
			return Payload{}, "", "", kerrors.New(kerrors.CodeTokenInvalidFormat, "token: missing tag separator")
		}
		bodyB32, tagB32 := parts[0], parts[1]

		body, err := b32.DecodeString(bodyB32)
		if err != nil {
			return Payload{}, "", "", kerrors.Newf(kerrors.CodeTokenInvalidFormat, "token: bad base32 body: %v", err)
		}
		tag, err := b32.DecodeString(tagB32)
		if err != nil {
			return Payload{}, "", "", kerrors.Newf(kerrors.CodeTokenInvalidFormat, "token: bad base32 tag: %v", err)
		}

		decoded, err := canonical.Decode(body)
		if err != nil {
			return Payload{}, "", "", kerrors.Newf(kerrors.CodeTokenInvalidFormat, "token: body is not canonical JSON: %v", err)
		}
		payload, ok := payloadFromCanonical(decoded)
		if !ok {
			return Payload{}, "", "", kerrors.New(kerrors.CodeTokenInvalidFormat, "token: payload is not an object")
		}
		if payload.TokenVersion != 1 {
			return Payload{}, "", "", kerrors.Newf(kerrors.CodeTokenUnsupportedVersion, "token: unsupported version %d", payload.TokenVersion)
		}
		if kind, ok := kindForPrefix(prefix); !ok || payload.TokenKind != kind {
			return Payload{}, "", "", kerrors.New(kerrors.CodeTokenInvalidFormat, "token: prefix/kind mismatch")
		}

		return payload, prefix + bodyB32, string(tag), nil
	}
	return Payload{}, "", "", kerrors.New(kerrors.CodeTokenInvalidFormat, "token: unrecognized prefix")
}

// Verify parses tok and checks its HMAC tag under key, requiring
// tokenKind == wantKind.
func Verify(key []byte, tok string, wantKind Kind) (Payload, error) {
	payload, signedPart, tagHex, err := Parse(tok)
	if err != nil {
		return Payload{}, err
	}
	if payload.TokenKind != wantKind {
		return Payload{}, kerrors.Newf(kerrors.CodeTokenInvalidFormat, "token: expected kind %q, got %q", wantKind, payload.TokenKind)
	}
	if !crypto.Verify(key, []byte(signedPart), tagHex) {
		return Payload{}, kerrors.New(kerrors.CodeTokenBadSignature, "token: signature verification failed")
	}
	return payload, nil
}

// AssertScopeMatches requires sessionId/runId/nodeId of ack to match state
// byte-for-byte.
func AssertScopeMatches(state, ack Payload) error {
	if state.SessionId != ack.SessionId || state.RunId != ack.RunId || state.NodeId != ack.NodeId {
		return kerrors.New(kerrors.CodeTokenScopeMismatch, "token: ack scope does not match state scope")
	}
	return nil
}
