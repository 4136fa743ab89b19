package session

import (
	"encoding/json"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/ids"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/kerrors"
)

// DefaultTTL is the heartbeat staleness window: a lock holder that hasn't
// refreshed its heartbeat within this window is presumed dead.
const DefaultTTL = 5 * time.Second

// RetryAfterMs is the advisory retry delay returned with LOCK_BUSY.
const RetryAfterMs = 1000

// Witness is proof of lock ownership. Only a Log holding a live Witness may
// Append; it is minted by Lock.Acquire and must not outlive the gate scope
// that acquired it.
type Witness struct {
	sessionId ids.SessionId
}

type lockFile struct {
	OwnerPid      int   `json:"ownerPid"`
	AcquiredAtMs  int64 `json:"acquiredAtMs"`
	HeartbeatAtMs int64 `json:"heartbeatAtMs"`
}

// Lock is the advisory per-session filesystem lock (C8): non-reentrant
// within one process, reclaimed from a dead or stale holder by any process.
type Lock struct {
	dir       string
	sessionId ids.SessionId
	ttl       time.Duration

	mu   sync.Mutex
	held bool
}

// OpenLock returns a Lock for sessionId rooted at <dataDir>/sessions/<id>/lock.
func OpenLock(dataDir string, sessionId ids.SessionId) *Lock {
	return OpenLockWithTTL(dataDir, sessionId, DefaultTTL)
}

// OpenLockWithTTL is OpenLock with an explicit staleness window, for
// deployments that configure it away from DefaultTTL.
func OpenLockWithTTL(dataDir string, sessionId ids.SessionId, ttl time.Duration) *Lock {
	return &Lock{dir: sessionDir(dataDir, sessionId), sessionId: sessionId, ttl: ttl}
}

func nowMs() int64 { return time.Now().UnixMilli() }

// Acquire creates the lock file exclusively if absent, or reclaims it if
// the current holder is dead or its heartbeat is stale. Reentry from the
// same in-process Lock value returns SESSION_LOCK_REENTRANT.
func (l *Lock) Acquire() (*Witness, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held {
		return nil, kerrors.New(kerrors.CodeSessionLockReentry, "session lock is already held by this process")
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, kerrors.Newf(kerrors.CodeLockAcquireFailed, "session: create session dir: %v", err)
	}

	path := lockPath(l.dir)
	now := nowMs()
	self := lockFile{OwnerPid: os.Getpid(), AcquiredAtMs: now, HeartbeatAtMs: now}

	if err := createExclusiveLock(path, self); err == nil {
		l.held = true
		return &Witness{sessionId: l.sessionId}, nil
	} else if !os.IsExist(err) {
		return nil, kerrors.Newf(kerrors.CodeLockAcquireFailed, "session: create lock file: %v", err)
	}

	existing, err := readLockFile(path)
	if err != nil {
		return nil, err
	}

	if isAlive(existing.OwnerPid) && now-existing.HeartbeatAtMs < l.ttl.Milliseconds() {
		return nil, kerrors.New(kerrors.CodeLockBusy, "session lock is held by a live process").WithRetry(RetryAfterMs)
	}

	// Stale: owner is dead, or hasn't heartbeat within the TTL. Reclaim.
	if err := writeLockFileAtomic(path, self); err != nil {
		return nil, err
	}
	l.held = true
	return &Witness{sessionId: l.sessionId}, nil
}

// Heartbeat refreshes the lock file's heartbeatAtMs. Called on every
// append by the current holder.
func (l *Lock) Heartbeat(w *Witness) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held || w == nil || w.sessionId != l.sessionId {
		return kerrors.New(kerrors.CodeInternalError, "session: heartbeat called without holding the lock")
	}
	existing, err := readLockFile(lockPath(l.dir))
	if err != nil {
		return err
	}
	existing.HeartbeatAtMs = nowMs()
	return writeLockFileAtomic(lockPath(l.dir), *existing)
}

// Release deletes the lock file. A deletion failure returns the retryable
// LOCK_RELEASE_FAILED; the in-process held flag is cleared only once the
// file is actually gone.
func (l *Lock) Release(w *Witness) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if w == nil || w.sessionId != l.sessionId {
		return kerrors.New(kerrors.CodeInternalError, "session: release called with a witness for a different session")
	}
	if err := os.Remove(lockPath(l.dir)); err != nil && !os.IsNotExist(err) {
		return kerrors.Newf(kerrors.CodeLockReleaseFailed, "session: remove lock file: %v", err)
	}
	l.held = false
	return nil
}

func createExclusiveLock(path string, lf lockFile) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, merr := json.Marshal(lf)
	if merr != nil {
		return merr
	}
	_, werr := f.Write(b)
	return werr
}

func readLockFile(path string) (*lockFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, kerrors.Newf(kerrors.CodeLockAcquireFailed, "session: read lock file: %v", err)
	}
	var lf lockFile
	if err := json.Unmarshal(b, &lf); err != nil {
		return nil, kerrors.Newf(kerrors.CodeLockAcquireFailed, "session: lock file is not valid JSON: %v", err)
	}
	return &lf, nil
}

func writeLockFileAtomic(path string, lf lockFile) error {
	b, err := json.Marshal(lf)
	if err != nil {
		return kerrors.Newf(kerrors.CodeInternalError, "session: marshal lock file: %v", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return kerrors.Newf(kerrors.CodeLockAcquireFailed, "session: write temp lock file: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return kerrors.Newf(kerrors.CodeLockAcquireFailed, "session: rename lock file into place: %v", err)
	}
	return nil
}

// isAlive reports whether pid names a live process, using signal 0 which
// performs the existence check without actually signaling the process.
func isAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	if pid == os.Getpid() {
		return true
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
