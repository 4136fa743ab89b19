package canonical

import (
	"testing"
)

func TestMarshal_SortsKeys(t *testing.T) {
	v := map[string]any{"b": 1.0, "a": 2.0, "c": 3.0}
	got, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"a":2,"b":1,"c":3}`
	if string(got) != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestMarshal_Deterministic(t *testing.T) {
	v := map[string]any{
		"x": []any{1.0, 2.0, 3.0},
		"y": map[string]any{"nested": true, "also": "here"},
	}
	a, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	b, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("two marshals of the same value diverged: %s vs %s", a, b)
	}
}

func TestMarshal_NonFiniteNumber(t *testing.T) {
	cases := []any{
		map[string]any{"n": nan()}, // NaN built at run time; a constant 0/0 does not compile
	}
	_ = cases
	v := map[string]any{"n": nan()}
	_, err := Marshal(v)
	var cerr *Error
	if err == nil {
		t.Fatal("expected error for NaN")
	}
	if ce, ok := err.(*Error); ok {
		cerr = ce
	} else {
		t.Fatalf("expected *Error, got %T", err)
	}
	if cerr.Code != CodeNonFiniteNumber {
		t.Fatalf("got code %s, want %s", cerr.Code, CodeNonFiniteNumber)
	}
}

func TestMarshal_Circular(t *testing.T) {
	m := map[string]any{}
	m["self"] = m
	_, err := Marshal(m)
	if err == nil {
		t.Fatal("expected CIRCULAR error")
	}
	if ce, ok := err.(*Error); !ok || ce.Code != CodeCircular {
		t.Fatalf("got %v, want CIRCULAR", err)
	}
}

func TestMarshal_TooDeep(t *testing.T) {
	var v any = "leaf"
	for i := 0; i < MaxDepth+5; i++ {
		v = map[string]any{"nested": v}
	}
	_, err := Marshal(v)
	if err == nil {
		t.Fatal("expected TOO_DEEP error")
	}
	if ce, ok := err.(*Error); !ok || ce.Code != CodeTooDeep {
		t.Fatalf("got %v, want TOO_DEEP", err)
	}
}

func TestMarshal_UnsupportedValue(t *testing.T) {
	_, err := Marshal(map[string]any{"f": func() {}})
	if err == nil {
		t.Fatal("expected UNSUPPORTED_VALUE error")
	}
	if ce, ok := err.(*Error); !ok || ce.Code != CodeUnsupportedValue {
		t.Fatalf("got %v, want UNSUPPORTED_VALUE", err)
	}
}

func TestRoundTrip(t *testing.T) {
	v := map[string]any{
		"name":  "demo",
		"count": 3.0,
		"tags":  []any{"a", "b"},
		"meta":  map[string]any{"ok": true, "ratio": 1.5},
	}
	b1, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	decoded, err := Decode(b1)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	b2, err := Marshal(decoded)
	if err != nil {
		t.Fatalf("re-Marshal: %v", err)
	}
	if string(b1) != string(b2) {
		t.Fatalf("round trip diverged: %s vs %s", b1, b2)
	}
}

func TestMarshal_EscapesControlCharsAndQuotes(t *testing.T) {
	v := map[string]any{"s": "line1\nline2\t\"quoted\"\\"}
	got, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"s":"line1\nline2\t\"quoted\"\\"}`
	if string(got) != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}
