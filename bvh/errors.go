package bvh

import "fmt"

// ParseError aborts an import; no partial skeleton is exposed.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("bvh: line %d: %s", e.Line, e.Msg)
	}
	return "bvh: " + e.Msg
}

// FrameIndexOutOfRange is reported when a requested frame gets clamped.
type FrameIndexOutOfRange struct {
	Requested  int
	Used       int
	FrameCount int
}

func (e *FrameIndexOutOfRange) Error() string {
	return fmt.Sprintf("bvh: frame %d out of range [0, %d), using frame %d", e.Requested, e.FrameCount, e.Used)
}
