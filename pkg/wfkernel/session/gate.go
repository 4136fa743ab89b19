package session

import (
	"time"

	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/ids"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/kerrors"
)

// Gate exposes the healthy-session critical section (C9): acquire lock,
// load truth, verify health, invoke the callback, always release.
type Gate struct {
	dataDir   string
	snapshots SnapshotChecker
	lockTTL   time.Duration
}

// NewGate returns a Gate rooted at dataDir using DefaultTTL for the session
// lock. snapshots is consulted by Append to verify I3 and may be nil in
// tests that don't exercise it.
func NewGate(dataDir string, snapshots SnapshotChecker) *Gate {
	return NewGateWithTTL(dataDir, snapshots, DefaultTTL)
}

// NewGateWithTTL is NewGate with an explicit lock staleness window, wired
// from config.Config.LockTTL by orchestrator.Open.
func NewGateWithTTL(dataDir string, snapshots SnapshotChecker, lockTTL time.Duration) *Gate {
	return &Gate{dataDir: dataDir, snapshots: snapshots, lockTTL: lockTTL}
}

// Body is invoked with a live witness, the log it may append through, and
// the truth that was just verified healthy.
type Body func(w *Witness, log *Log, truth *Truth) error

// WithHealthySessionLock acquires sessionId's lock, loads its truth, and —
// if healthy — invokes body. The lock is released on every exit path,
// including a panic recovered and returned as GATE_CALLBACK_FAILED.
func (g *Gate) WithHealthySessionLock(sessionId ids.SessionId, body Body) (err error) {
	lock := OpenLockWithTTL(g.dataDir, sessionId, g.lockTTL)
	witness, aerr := lock.Acquire()
	if aerr != nil {
		return aerr
	}

	defer func() {
		if rerr := lock.Release(witness); rerr != nil && err == nil {
			err = rerr
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			err = kerrors.Newf(kerrors.CodeGateCallbackFailed, "session: gate callback panicked: %v", r)
		}
	}()

	log := OpenLog(g.dataDir, sessionId, g.snapshots)
	truth, lerr := log.Load()
	if lerr != nil {
		if kerr, ok := lerr.(*kerrors.Error); ok && kerr.Code == kerrors.CodeCorruptionDetected {
			return kerrors.New(kerrors.CodeSessionNotHealthy, "session truth failed integrity verification").WithDetails(kerr.Details)
		}
		return kerrors.Newf(kerrors.CodeSessionLoadFailed, "session: load truth: %v", lerr)
	}
	if truth.Health != HealthHealthy {
		return kerrors.New(kerrors.CodeSessionNotHealthy, "session truth is not healthy")
	}

	if err = lock.Heartbeat(witness); err != nil {
		return err
	}

	err = body(witness, log, truth)
	return err
}

// LoadHealthy loads truth outside any lock, for read-only paths (rehydrate,
// replay) that tolerate concurrent writers. A corrupt load is still mapped
// to SESSION_NOT_HEALTHY.
func (g *Gate) LoadHealthy(sessionId ids.SessionId) (*Truth, error) {
	log := OpenLog(g.dataDir, sessionId, g.snapshots)
	truth, err := log.Load()
	if err != nil {
		if kerr, ok := err.(*kerrors.Error); ok && kerr.Code == kerrors.CodeCorruptionDetected {
			return nil, kerrors.New(kerrors.CodeSessionNotHealthy, "session truth failed integrity verification").WithDetails(kerr.Details)
		}
		return nil, kerrors.Newf(kerrors.CodeSessionLoadFailed, "session: load truth: %v", err)
	}
	return truth, nil
}
