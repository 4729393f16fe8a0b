package kernel

import "fmt"

// Result is the 32-bit operation result code of spec §7. Zero is success;
// every other value satisfies error so callers can use errors.Is against
// the sentinels below.
type Result int32

const (
	OK Result = 0

	// Expected-outcome results: surfaced to the caller as a normal
	// return, never logged (spec §7).
	ErrTimeout    Result = -1
	ErrNoResource Result = -2
	ErrFull       Result = -3
	ErrEmpty      Result = -4
	ErrFlushed    Result = -5

	// Validation results: detected on entry, no state change (spec §7).
	ErrInvalidID      Result = -6
	ErrNotInitialized Result = -7
	ErrWrongContext   Result = -8

	// Internal invariant violation: logged via the trace collaborator,
	// the operation is aborted (spec §7).
	ErrInternal Result = -9

	// resultPending is never returned to a caller. A primitive's
	// privileged body returns it to tell invokeAndSchedule that the
	// calling task was exit-staged and the real result will only be
	// known once something later wakes it (scheduleEntryTrigger records
	// that result on the task itself).
	resultPending Result = -1000
)

var resultText = map[Result]string{
	OK:                "ok",
	ErrTimeout:        "timeout",
	ErrNoResource:     "no resource",
	ErrFull:           "full",
	ErrEmpty:          "empty",
	ErrFlushed:        "flushed",
	ErrInvalidID:      "invalid id",
	ErrNotInitialized: "not initialized",
	ErrWrongContext:   "wrong context",
	ErrInternal:       "internal error",
}

func (r Result) Error() string {
	if s, ok := resultText[r]; ok {
		return s
	}
	return fmt.Sprintf("result(%d)", int32(r))
}

// internalErrorf wraps ErrInternal with detail the way the teacher's
// ErrExecAbortError.Error() formats dependency context
// (core/blockstm/executor.go).
func internalErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{error(ErrInternal)}, args...)...)
}
