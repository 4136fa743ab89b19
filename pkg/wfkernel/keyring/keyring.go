// Package keyring persists the kernel's single HMAC signing key under the
// process-wide data directory, creating it atomically on first use.
package keyring

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/kerrors"
)

const (
	keyFileName = "v1.key"
	keySize     = 32 // 256 bits, matching SHA-256's output size
)

// Keyring loads or creates the signing key under <dataDir>/keyring/.
type Keyring struct {
	dir string
}

// Open returns a Keyring rooted at <dataDir>/keyring. It does not touch the
// filesystem until Load is called.
func Open(dataDir string) *Keyring {
	return &Keyring{dir: filepath.Join(dataDir, "keyring")}
}

// Load returns the persisted signing key, creating one atomically if this
// is the first call against this data directory. Subsequent calls — from
// this process or any other pointed at the same data directory — return the
// same bytes.
func (k *Keyring) Load() ([]byte, error) {
	path := filepath.Join(k.dir, keyFileName)

	if b, err := os.ReadFile(path); err == nil {
		if len(b) != keySize {
			return nil, kerrors.Newf(kerrors.CodeInternalError, "keyring: corrupt key file: want %d bytes, got %d", keySize, len(b))
		}
		return b, nil
	} else if !os.IsNotExist(err) {
		return nil, kerrors.Newf(kerrors.CodeIOError, "keyring: read key: %v", err)
	}

	if err := os.MkdirAll(k.dir, 0o700); err != nil {
		return nil, kerrors.Newf(kerrors.CodeIOError, "keyring: create dir: %v", err)
	}

	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, kerrors.Newf(kerrors.CodeInternalError, "keyring: generate key: %v", err)
	}

	if err := writeAtomic(path, key); err != nil {
		// Another process may have won the race; re-read rather than fail.
		if b, rerr := os.ReadFile(path); rerr == nil && len(b) == keySize {
			return b, nil
		}
		return nil, err
	}

	return key, nil
}

func writeAtomic(path string, data []byte) error {
	tmp := fmt.Sprintf("%s.tmp-%d", path, os.Getpid())
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return kerrors.Newf(kerrors.CodeIOError, "keyring: create temp key file: %v", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return kerrors.Newf(kerrors.CodeIOError, "keyring: write temp key file: %v", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return kerrors.Newf(kerrors.CodeIOError, "keyring: fsync temp key file: %v", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return kerrors.Newf(kerrors.CodeIOError, "keyring: close temp key file: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return kerrors.Newf(kerrors.CodeIOError, "keyring: rename key file: %v", err)
	}
	return nil
}
