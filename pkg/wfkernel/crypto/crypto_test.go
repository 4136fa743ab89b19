package crypto

import "testing"

func TestSha256Deterministic(t *testing.T) {
	a := Sha256([]byte("hello"))
	b := Sha256([]byte("hello"))
	if a != b {
		t.Fatalf("digest not deterministic: %s vs %s", a, b)
	}
	if a.Hex() == string(a) {
		t.Fatalf("Hex() should strip the sha256: prefix")
	}
}

func TestSignVerify(t *testing.T) {
	key := []byte("secret-key")
	body := []byte("payload bytes")
	tag := Sign(key, body)

	if !Verify(key, body, tag) {
		t.Fatal("expected valid signature to verify")
	}
	if Verify([]byte("wrong-key"), body, tag) {
		t.Fatal("expected signature under wrong key to fail")
	}
	tampered := []byte("payload byteS")
	if Verify(key, tampered, tag) {
		t.Fatal("expected tampered body to fail verification")
	}
}
