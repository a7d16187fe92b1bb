package program

import "fmt"

// CustomErrorOffset is the first code available to program-defined errors.
const CustomErrorOffset uint32 = 6000

// Error is a typed program failure surfaced unchanged to the caller.
type Error struct {
	Code uint32
	Name string
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("program error %d (%s): %s", e.Code, e.Name, e.Msg)
}

// Is matches program errors by code so wrapped copies still compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var ErrTooManySteps = &Error{
	Code: CustomErrorOffset,
	Name: "TooManySteps",
	Msg:  "Too many steps in protocol.",
}
