// Package store implements the kernel's two content-addressed key/value
// stores: execution snapshots and pinned workflows. Both share the same
// put-temp-fsync-rename mechanics; only the schema envelope differs.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/canonical"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/crypto"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/kerrors"
)

// MaxObjectSize is the default ceiling enforced on put and get.
const MaxObjectSize = 1 << 20 // 1 MiB

// Store is a content-addressed key/value store rooted at a directory. Keys
// are the hex SHA-256 of the canonical bytes written; puts are idempotent.
type Store struct {
	dir     string
	maxSize int
}

// Open returns a Store rooted at dir, creating dir if needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, kerrors.Newf(kerrors.CodeIOError, "store: create dir %s: %v", dir, err)
	}
	return &Store{dir: dir, maxSize: MaxObjectSize}, nil
}

// Put canonicalizes value, writes it under its content hash if absent, and
// returns the digest. Puts are idempotent: a put of the same logical value
// is a no-op beyond recomputing the hash.
func (s *Store) Put(value any) (crypto.Digest, error) {
	b, err := canonical.Marshal(value)
	if err != nil {
		return "", kerrors.Newf(kerrors.CodeInternalError, "store: canonicalize: %v", err)
	}
	if len(b) > s.maxSize {
		return "", kerrors.Newf(kerrors.CodeInternalError, "store: object of %d bytes exceeds ceiling %d", len(b), s.maxSize)
	}

	digest := crypto.Sha256(b)
	path := filepath.Join(s.dir, digest.Hex())

	if _, err := os.Stat(path); err == nil {
		return digest, nil // already present; put is idempotent
	}

	tmp := fmt.Sprintf("%s.tmp-%d", path, os.Getpid())
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", kerrors.Newf(kerrors.CodeIOError, "store: create temp object: %v", err)
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", kerrors.Newf(kerrors.CodeIOError, "store: write temp object: %v", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", kerrors.Newf(kerrors.CodeIOError, "store: fsync temp object: %v", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", kerrors.Newf(kerrors.CodeIOError, "store: close temp object: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", kerrors.Newf(kerrors.CodeIOError, "store: rename object into place: %v", err)
	}
	return digest, nil
}

// Get returns the decoded value for digest. A missing key returns
// (nil, false, nil) — not an error.
func (s *Store) Get(digest crypto.Digest) (any, bool, error) {
	path := filepath.Join(s.dir, digest.Hex())
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, kerrors.Newf(kerrors.CodeIOError, "store: read object: %v", err)
	}
	if len(b) > s.maxSize {
		return nil, false, kerrors.Newf(kerrors.CodeInternalError, "store: object of %d bytes exceeds ceiling %d on get", len(b), s.maxSize)
	}
	v, err := canonical.Decode(b)
	if err != nil {
		return nil, false, kerrors.Newf(kerrors.CodeCorruptionDetected, "store: decode object: %v", err)
	}
	return v, true, nil
}

// GetByHex is a convenience wrapper for callers holding a bare hex key
// (as recorded in a manifest's snapshotPins) rather than a branded Digest.
func (s *Store) GetByHex(hex string) (any, bool, error) {
	return s.Get(crypto.Digest("sha256:" + hex))
}
