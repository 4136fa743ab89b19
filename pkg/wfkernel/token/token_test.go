package token

import (
	"strings"
	"testing"

	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/ids"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/kerrors"
)

var testKey = []byte("test-signing-key-0123456789abcd")

func samplePayload(kind Kind) Payload {
	return Payload{
		TokenVersion: 1,
		TokenKind:    kind,
		SessionId:    ids.SessionId("sess_1"),
		RunId:        ids.RunId("run_1"),
		NodeId:       ids.NodeId("node_1"),
		WorkflowHash: "sha256:abc",
		AttemptId:    ids.AttemptId("att_1"),
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	p := samplePayload(KindState)
	tok, err := Sign(testKey, p)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !strings.HasPrefix(tok, "st.v1.") {
		t.Fatalf("got %q, want st.v1. prefix", tok)
	}

	got, err := Verify(testKey, tok, KindState)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.SessionId != p.SessionId || got.NodeId != p.NodeId {
		t.Fatalf("got %+v, want %+v", got, p)
	}
}

func TestSignIsDeterministic(t *testing.T) {
	p := samplePayload(KindAck)
	a, err := Sign(testKey, p)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	b, err := Sign(testKey, p)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if a != b {
		t.Fatalf("expected byte-identical tokens, got %q vs %q", a, b)
	}
}

func TestTamperedTokenFailsSignature(t *testing.T) {
	p := samplePayload(KindCheckpoint)
	tok, err := Sign(testKey, p)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	tampered := tok[:len(tok)-1] + flipLastChar(tok)
	_, err = Verify(testKey, tampered, KindCheckpoint)
	if err == nil {
		t.Fatal("expected tampered token to fail verification")
	}
	kerr, ok := err.(*kerrors.Error)
	if !ok || kerr.Code != kerrors.CodeTokenBadSignature {
		t.Fatalf("got %v, want TOKEN_BAD_SIGNATURE", err)
	}
}

func flipLastChar(tok string) string {
	last := tok[len(tok)-1]
	if last == 'A' {
		return "B"
	}
	return "A"
}

func TestScopeMismatch(t *testing.T) {
	state := samplePayload(KindState)
	ack := samplePayload(KindAck)
	ack.SessionId = "sess_other"
	if err := AssertScopeMatches(state, ack); err == nil {
		t.Fatal("expected scope mismatch to be detected")
	}

	matching := samplePayload(KindAck)
	if err := AssertScopeMatches(state, matching); err != nil {
		t.Fatalf("expected matching scope to pass, got %v", err)
	}
}

func TestParseRejectsBadPrefix(t *testing.T) {
	_, _, _, err := Parse("not-a-token")
	if err == nil {
		t.Fatal("expected unrecognized prefix to fail")
	}
	kerr, ok := err.(*kerrors.Error)
	if !ok || kerr.Code != kerrors.CodeTokenInvalidFormat {
		t.Fatalf("got %v, want TOKEN_INVALID_FORMAT", err)
	}
}
