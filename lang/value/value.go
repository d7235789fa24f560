// Package value defines the Value interface shared by every runtime value
// and the three primitive cases that need no heap allocation: numbers,
// booleans, and nil. The heap-allocated cases (strings, user functions,
// native functions) live in package object, which depends on both this
// package and the chunk package; keeping them out of this package avoids an
// import cycle (a function's chunk holds constants, which are Values).
package value

import "fmt"

// Value is implemented by every runtime value.
type Value interface {
	// String returns the display form used by the print statement and the
	// disassembler/tracer.
	String() string
	// Type names the value's runtime type, used in error messages.
	Type() string
}

// Number is an IEEE-754 double. Lox (per spec) has no integer type distinct
// from double.
type Number float64

func (n Number) String() string { return fmt.Sprintf("%g", float64(n)) }
func (Number) Type() string     { return "number" }

// Bool is a boolean value.
type Bool bool

func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (Bool) Type() string { return "bool" }

// NilType is the type of Nil. Its only legal value is the Nil constant.
type NilType struct{}

func (NilType) String() string { return "nil" }
func (NilType) Type() string   { return "nil" }

// Nil is the singleton nil value.
var Nil = NilType{}

// IsFalsey implements the falsiness predicate: Nil and Bool(false) are
// falsey, every other value is truthy.
func IsFalsey(v Value) bool {
	switch v := v.(type) {
	case NilType:
		return true
	case Bool:
		return !bool(v)
	default:
		return false
	}
}
