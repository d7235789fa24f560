package compiler

import "strings"

// Error reports the set of diagnostics produced by a failed Compile. Each
// entry is already formatted as "[line L] Error ...: message".
type Error struct {
	Diagnostics []string
}

func (e *Error) Error() string {
	return strings.Join(e.Diagnostics, "\n")
}
