package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRetrievalTimeout is the only error a retrieve call surfaces to its
	// caller: the overall deadline elapsed before fusion completed. Callers
	// should treat it as "system overloaded, retry", not "answer not found".
	ErrRetrievalTimeout = errors.New("retrieval timeout")

	// ErrSourceUnavailable marks adapter-level failures (store connectivity,
	// malformed compiled query). It is absorbed below the orchestrator and
	// never reaches callers.
	ErrSourceUnavailable = errors.New("source unavailable")

	ErrInvalidInput = errors.New("invalid input")
	ErrTemporary    = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
