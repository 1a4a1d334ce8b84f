package reasoner

import (
	"context"
	"errors"
	"fmt"

	"github.com/sells-group/signal-cli/internal/monitoring"
	"github.com/sells-group/signal-cli/internal/resilience"
)

// ErrorKind classifies a reasoning failure.
type ErrorKind string

// Failure kinds.
const (
	KindTimeout     ErrorKind = "timeout"
	KindTransport   ErrorKind = "transport"
	KindEmpty       ErrorKind = "empty"
	KindMalformed   ErrorKind = "malformed"
	KindCircuitOpen ErrorKind = "circuit_open"
)

// Error is returned by every Reasoner and by Decode.
type Error struct {
	Kind     ErrorKind
	CallSite string
	Err      error
}

func (e *Error) Error() string {
	if e.CallSite == "" {
		return fmt.Sprintf("reasoner %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("reasoner %s at %s: %v", e.Kind, e.CallSite, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a reasoner *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == kind
}

// classify wraps a backend failure and counts it.
func classify(ctx context.Context, callSite string, err error) *Error {
	monitoring.Global().ReasonerErrors.Add(1)

	kind := KindTransport
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		kind = KindCircuitOpen
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		kind = KindTimeout
	}
	return &Error{Kind: kind, CallSite: callSite, Err: err}
}
