package markov

import (
	"fmt"
	"strings"
)

// Sentinel marks the start or end of a learned sequence.
// Learned tokens are never empty, so the empty string cannot collide with one.
const Sentinel = ""

// DefaultOrder is the context window size used when a new model is created
// without an explicit order
const DefaultOrder = 4

// IsSentinel reports whether a window slot holds the sequence boundary marker
func IsSentinel(word string) bool {
	return word == Sentinel
}

// Direction selects one of the two chain namespaces
type Direction uint8

const (
	Forward  Direction = iota // Walk from the start of a sequence towards its end
	Backward                  // Walk from the end of a sequence towards its start
)

// Prefix returns the key prefix of the direction's namespace
func (d Direction) Prefix() byte {
	if d == Backward {
		return '<'
	}
	return '>'
}

// Reverse returns the opposite direction
func (d Direction) Reverse() Direction {
	if d == Forward {
		return Backward
	}
	return Forward
}

// String returns the direction name
func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// Window is an ordered run of words used while learning (order+1 slots)
// or generating (order slots). Only the outermost slots may hold the Sentinel.
type Window []string

// Boundary returns the word a direction uses as its root key.
// A learning window is keyed by its first slot going forward and by its
// last slot going backward.
func (w Window) Boundary(dir Direction) string {
	if dir == Forward {
		return w[0]
	}
	return w[len(w)-1]
}

// Continuation returns the word recorded as the next step in a direction,
// the slot opposite to the boundary
func (w Window) Continuation(dir Direction) string {
	if dir == Forward {
		return w[len(w)-1]
	}
	return w[0]
}

// Middle returns the interior slots of a learning window
func (w Window) Middle() []string {
	return w[1 : len(w)-1]
}

// Slide drops the word at the trailing edge for a direction and appends
// next on the leading edge, returning a new window of the same length
func (w Window) Slide(dir Direction, next string) Window {
	out := make(Window, 0, len(w))
	if dir == Forward {
		out = append(out, w[1:]...)
		return append(out, next)
	}
	out = append(out, next)
	return append(out, w[:len(w)-1]...)
}

// String renders the window with "<>" standing in for the Sentinel
func (w Window) String() string {
	parts := make([]string, len(w))
	for i, word := range w {
		if IsSentinel(word) {
			parts[i] = "<>"
		} else {
			parts[i] = word
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}
