package trace

import (
	"fmt"

	"github.com/tracekit/itre/internal/event"
	"github.com/tracekit/itre/internal/resolver"
)

// Kind classifies a conversion failure. It is a classification, not a
// concrete Go error type: most kinds are structurally recoverable and
// only logged, never returned.
type Kind string

const (
	KindResolverUnavailable     Kind = "ResolverUnavailable"
	KindInstrumentationInactive Kind = "InstrumentationInactive"
	KindInstrumentationFailure  Kind = "InstrumentationFailureSoft"
	KindLoopNestingViolation    Kind = "LoopNestingViolation"
	KindFrameUnderflow          Kind = "FrameUnderflow"
	KindUnknownEventType        Kind = "UnknownEventType"
	KindDeterminismViolation    Kind = "DeterminismViolation"
)

// DeterminismViolationError is fatal: the final renumber sweep found a
// gap, indicating a programming bug in the converter itself.
type DeterminismViolationError struct {
	Index    int
	Expected int
	Got      int
}

func (e DeterminismViolationError) Error() string {
	return fmt.Sprintf("determinism violation: steps[%d].stepIndex = %d, expected %d", e.Index, e.Got, e.Expected)
}

// FatalErrorKind classifies an error returned from Convert as one of the
// three kinds that fail the conversion outright. Everything else is
// expressed as a logged warning plus a dropped event, never a returned
// error.
func FatalErrorKind(err error) Kind {
	switch err.(type) {
	case DeterminismViolationError:
		return KindDeterminismViolation
	case event.ErrInstrumentationInactive:
		return KindInstrumentationInactive
	case resolver.ErrResolverUnavailable:
		return KindResolverUnavailable
	}
	return ""
}
