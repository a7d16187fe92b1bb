package runtime

import (
	"errors"
	"fmt"

	"github.com/rahul/heo/internal/program"
	"github.com/rahul/heo/internal/store"
)

// Describe renders an invocation outcome as a ledger status and a short
// human-readable line.
func Describe(rec Receipt, err error) (string, string) {
	var perr *program.Error
	switch {
	case err == nil:
		return store.StatusSuccess, fmt.Sprintf("%s accepted %d steps (call %s).", rec.Program, rec.StepCount, rec.ID)
	case errors.As(err, &perr):
		return store.StatusFailed, fmt.Sprintf("%s rejected the protocol: %s (error %d)", rec.Program, perr.Msg, perr.Code)
	default:
		return store.StatusFailed, fmt.Sprintf("Call could not be executed: %v", err)
	}
}
