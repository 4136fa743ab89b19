package ids

import "testing"

func TestNewIdsAreValidAndUnique(t *testing.T) {
	a := NewSessionId()
	b := NewSessionId()
	if a == b {
		t.Fatal("expected two minted session ids to differ")
	}
	if !Valid(string(a)) {
		t.Fatalf("minted id %q failed charset check", a)
	}
}

func TestAttemptIdForNextNodeIsDeterministic(t *testing.T) {
	parent := AttemptId("att_fixed")
	first := AttemptIdForNextNode(parent)
	second := AttemptIdForNextNode(parent)
	if first != second {
		t.Fatalf("expected deterministic derivation, got %q then %q", first, second)
	}
	if first != "next_att_fixed" {
		t.Fatalf("got %q, want next_att_fixed", first)
	}
}

func TestValidRejectsBadCharset(t *testing.T) {
	cases := []string{"", "has space", "has/slash", "has.dot"}
	for _, c := range cases {
		if Valid(c) {
			t.Fatalf("expected %q to be invalid", c)
		}
	}
}

func TestCheckCharset(t *testing.T) {
	if err := CheckCharset("stepId", "ok-id_1"); err != nil {
		t.Fatalf("expected valid id to pass, got %v", err)
	}
	if err := CheckCharset("stepId", "bad id"); err == nil {
		t.Fatal("expected invalid id to fail")
	}
}
