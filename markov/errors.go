package markov

import (
	"errors"
	"fmt"
)

var (
	// ErrSequenceTooShort is returned when a token sequence has fewer than
	// order+1 words. Callers usually skip the input.
	ErrSequenceTooShort = errors.New("sequence too short")

	// ErrEmptyToken is returned when a learned sequence holds an empty
	// word, which would be indistinguishable from the Sentinel
	ErrEmptyToken = errors.New("empty token")

	// ErrStartWord is the parent of every error caused by an unusable seed
	ErrStartWord = errors.New("unusable start word")

	// ErrNoSuchWord means the seed boundary was never observed
	ErrNoSuchWord = fmt.Errorf("%w: no such word", ErrStartWord)

	// ErrStartWordSequenceTooShort means the seed boundary was observed only
	// with an immediate terminator, so no full window can be built
	ErrStartWordSequenceTooShort = fmt.Errorf("%w: start word sequence too short", ErrStartWord)

	// ErrModelIsEmpty is returned by random generation before anything was learned
	ErrModelIsEmpty = errors.New("model is empty")
)

// SequenceTooShortError carries the sizes involved in a rejected Learn call
type SequenceTooShortError struct {
	Got  int
	Need int
}

func (e *SequenceTooShortError) Error() string {
	return fmt.Sprintf("sequence too short: got %d words, need at least %d", e.Got, e.Need)
}

func (e *SequenceTooShortError) Unwrap() error {
	return ErrSequenceTooShort
}

// StartWordError records which seed failed and in which direction
type StartWordError struct {
	Word      string
	Direction Direction
	Err       error // ErrNoSuchWord or ErrStartWordSequenceTooShort
}

func (e *StartWordError) Error() string {
	word := e.Word
	if IsSentinel(word) {
		word = "<start>"
	}
	return fmt.Sprintf("%v (word %q, %s)", e.Err, word, e.Direction)
}

func (e *StartWordError) Unwrap() error {
	return e.Err
}
