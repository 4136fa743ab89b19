package keyring

import "testing"

func TestLoadCreatesThenPersists(t *testing.T) {
	dir := t.TempDir()

	k1 := Open(dir)
	key1, err := k1.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(key1) != keySize {
		t.Fatalf("got key of length %d, want %d", len(key1), keySize)
	}

	k2 := Open(dir)
	key2, err := k2.Load()
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if string(key1) != string(key2) {
		t.Fatal("second Load returned a different key than the first")
	}
}

func TestLoadDifferentDirsDifferentKeys(t *testing.T) {
	key1, err := Open(t.TempDir()).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	key2, err := Open(t.TempDir()).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(key1) == string(key2) {
		t.Fatal("expected independently generated keys to differ")
	}
}
