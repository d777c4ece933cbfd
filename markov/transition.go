package markov

import (
	"math/rand"
	"slices"
)

// TransitionKind tags which variant a Transition holds
type TransitionKind uint8

const (
	Absent TransitionKind = iota // No continuation recorded
	Single                       // Exactly one continuation
	Many                         // Two or more distinct continuations
)

// String returns the kind name
func (k TransitionKind) String() string {
	switch k {
	case Absent:
		return "absent"
	case Single:
		return "single"
	case Many:
		return "many"
	default:
		return "unknown"
	}
}

// Transition is the set of continuations observed after a context.
// The Sentinel may be one of them, meaning the sequence may end here.
// The zero value is Absent.
type Transition struct {
	kind  TransitionKind
	words []string
}

// NewSingle creates a transition holding one continuation
func NewSingle(word string) Transition {
	return Transition{kind: Single, words: []string{word}}
}

// NewMany creates a transition from distinct continuations. Duplicates are
// dropped; fewer than two distinct words collapse to Single or Absent.
func NewMany(words ...string) Transition {
	var t Transition
	for _, w := range words {
		t = t.Merge(w)
	}
	return t
}

// Kind returns the variant tag
func (t Transition) Kind() TransitionKind {
	return t.kind
}

// IsAbsent reports whether nothing was recorded
func (t Transition) IsAbsent() bool {
	return t.kind == Absent
}

// Words returns a copy of the recorded continuations in insertion order
func (t Transition) Words() []string {
	return slices.Clone(t.words)
}

// Len returns the number of distinct continuations
func (t Transition) Len() int {
	return len(t.words)
}

// Contains reports whether word was recorded
func (t Transition) Contains(word string) bool {
	return slices.Contains(t.words, word)
}

// Merge returns the transition with word recorded. The receiver is not
// modified. Once a transition holds several words it never collapses
// back to Single.
func (t Transition) Merge(word string) Transition {
	switch t.kind {
	case Absent:
		return NewSingle(word)
	case Single:
		if t.words[0] == word {
			return t
		}
		return Transition{kind: Many, words: []string{t.words[0], word}}
	default:
		if t.Contains(word) {
			return t
		}
		words := make([]string, len(t.words), len(t.words)+1)
		copy(words, t.words)
		return Transition{kind: Many, words: append(words, word)}
	}
}

// Choose resolves the transition to one continuation, picking uniformly
// when several were recorded. ok is false for Absent.
func (t Transition) Choose(rng *rand.Rand) (word string, ok bool) {
	switch t.kind {
	case Absent:
		return Sentinel, false
	case Single:
		return t.words[0], true
	default:
		return t.words[rng.Intn(len(t.words))], true
	}
}

// Equal reports whether both transitions hold the same variant and words
func (t Transition) Equal(other Transition) bool {
	return t.kind == other.kind && slices.Equal(t.words, other.words)
}
