package parser

import "fmt"

// FormatError means a primitive got input outside the shape it expects.
// Seeing one usually points at a call site that skipped a presence check.
type FormatError struct {
	Op    string
	Input string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: malformed input %q", e.Op, e.Input)
}

// StructureError means the page markup lacks an element that every
// message or channel page is expected to carry. Fatal for the page.
type StructureError struct {
	Element string
	Post    string // data-post of the offending message, if known
	Err     error
}

func (e *StructureError) Error() string {
	msg := "missing or invalid " + e.Element
	if e.Post != "" {
		msg += " in message " + e.Post
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StructureError) Unwrap() error {
	return e.Err
}
