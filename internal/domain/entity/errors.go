package entity

import "fmt"

// DecodeError means the source video could not be opened or yielded no
// frames at all. It is fatal: there is no partial result for a source
// that cannot be read.
type DecodeError struct {
	Path   string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode %s: %s", e.Path, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// InferenceError is a per-item detection or extraction failure. It is
// never propagated as a pipeline error; the owning frame or region is
// recorded as empty and the run continues.
type InferenceError struct {
	Stage      string // "detect" or "extract"
	FrameIndex int
	Timeout    bool
	Err        error
}

func (e *InferenceError) Error() string {
	kind := "failure"
	if e.Timeout {
		kind = "timeout"
	}
	return fmt.Sprintf("inference %s in %s, frame %d: %v", kind, e.Stage, e.FrameIndex, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// AssemblyError signals a broken invariant between the deduplicator and
// the assembler. It indicates an internal bug, not bad input.
type AssemblyError struct {
	Reason string
}

func (e *AssemblyError) Error() string {
	return "assemble document: " + e.Reason
}
