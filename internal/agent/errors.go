package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy matches any *BusyError.
	ErrBusy = errors.New("agent is busy")

	// ErrDeleted is returned by every operation after Delete.
	ErrDeleted = errors.New("agent deleted")

	// ErrEmptyQuery rejects a turn with no text.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrCancelled ends a live view whose turn was discarded by Cancel.
	ErrCancelled = errors.New("turn cancelled")

	// ErrTurnFinished is returned by LiveView.Wait after the terminal item
	// was consumed.
	ErrTurnFinished = errors.New("turn finished")
)

// BusyError rejects an operation because a turn is in flight.
type BusyError struct {
	Status Status
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("agent is busy (status %s), retry once the current turn finishes", e.Status)
}

func (e *BusyError) Is(target error) bool { return target == ErrBusy }
