package orchestrator

import "github.com/ormasoftchile/wfkernel/pkg/wfkernel/kerrors"

// toOutward maps a lower-level kerrors.Code — surfaced internally by the
// session log/lock/gate machinery before it ever reaches this package's
// entry points — onto the closed set of codes start_workflow and
// continue_workflow are allowed to return. A code already in that set
// passes through unchanged.
func toOutward(err error) error {
	if err == nil {
		return nil
	}
	kerr, ok := err.(*kerrors.Error)
	if !ok {
		return err
	}

	switch kerr.Code {
	case kerrors.CodeLockBusy:
		return recode(kerr, kerrors.CodeTokenSessionLocked)
	case kerrors.CodeCorruptionDetected:
		return recode(kerr, kerrors.CodeSessionNotHealthy)
	case kerrors.CodeLockReleaseFailed,
		kerrors.CodeLockAcquireFailed,
		kerrors.CodeSessionLockReentry,
		kerrors.CodeSessionLoadFailed,
		kerrors.CodeGateCallbackFailed,
		kerrors.CodeIOError,
		kerrors.CodeInvariantViolation,
		kerrors.CodeApplyFailed,
		kerrors.CodeNextFailed:
		return recode(kerr, kerrors.CodeInternalError)
	default:
		return kerr
	}
}

func recode(kerr *kerrors.Error, code kerrors.Code) *kerrors.Error {
	cp := *kerr
	cp.Code = code
	return &cp
}
