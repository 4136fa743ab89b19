package orchestrator

import (
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/canonical"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/kerrors"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/schema"
)

// maxContextBytes is the canonical-byte ceiling enforced on every context
// object accepted by start_workflow / continue_workflow.
const maxContextBytes = 256 * 1024

// validateContext enforces B1/B2 and the VALIDATION_ERROR sub-reasons: a
// nil context is treated as an empty object.
func validateContext(context map[string]any) (map[string]any, error) {
	if context == nil {
		return map[string]any{}, nil
	}
	if serr := schema.ValidateContext(context); serr != nil {
		return nil, serr
	}
	b, err := canonical.Marshal(context)
	if err != nil {
		if cerr, ok := err.(*canonical.Error); ok {
			return nil, kerrors.Validation(reasonFor(cerr.Code), "context: "+cerr.Error())
		}
		return nil, kerrors.Validation(kerrors.ReasonContextNotCanonicalJSON, "context: "+err.Error())
	}
	if len(b) > maxContextBytes {
		return nil, kerrors.Validation(kerrors.ReasonContextBudgetExceeded, "context exceeds 256 KiB of canonical bytes")
	}
	return context, nil
}

func reasonFor(code string) string {
	switch code {
	case canonical.CodeNonFiniteNumber:
		return kerrors.ReasonContextNonFiniteNumber
	case canonical.CodeCircular:
		return kerrors.ReasonContextCircularReference
	case canonical.CodeTooDeep:
		return kerrors.ReasonContextTooDeep
	case canonical.CodeUnsupportedValue:
		return kerrors.ReasonContextUnsupportedValue
	default:
		return kerrors.ReasonContextInvalidShape
	}
}
