package engine

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/wbrown/dadacore/markov"
	"github.com/wbrown/dadacore/markov/annotations"
)

// GenerateRandom produces a sequence that starts the way some learned
// sequence started, walking forward until a terminator is drawn.
// It returns markov.ErrModelIsEmpty when nothing has been learned.
func (m *Model) GenerateRandom() ([]string, error) {
	start := time.Now()

	window, err := m.seed(markov.Sentinel, markov.Forward)
	if errors.Is(err, markov.ErrNoSuchWord) {
		err = markov.ErrModelIsEmpty
	}
	if err != nil {
		return nil, m.failed("random", start, err)
	}

	tail, err := m.expand(window, markov.Forward)
	if err != nil {
		return nil, m.failed("random", start, err)
	}

	out := append(slices.Clone([]string(window)), tail...)
	m.completed("random", start, out)
	return out, nil
}

// GenerateFromWord produces a sequence containing word, growing it in
// both directions. The seed window is taken from the forward chain when
// possible and from the backward chain otherwise. Errors wrapping
// markov.ErrStartWord mean word cannot seed generation in either
// direction.
func (m *Model) GenerateFromWord(word string) ([]string, error) {
	start := time.Now()
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		err := &markov.StartWordError{Word: word, Direction: markov.Forward, Err: markov.ErrNoSuchWord}
		return nil, m.failed("word", start, err)
	}

	window, err := m.seed(word, markov.Forward)
	if errors.Is(err, markov.ErrStartWord) {
		window, err = m.seed(word, markov.Backward)
	}
	if err != nil {
		return nil, m.failed("word", start, err)
	}

	head, err := m.expand(window, markov.Backward)
	if err != nil {
		return nil, m.failed("word", start, err)
	}
	tail, err := m.expand(window, markov.Forward)
	if err != nil {
		return nil, m.failed("word", start, err)
	}

	out := make([]string, 0, len(head)+len(window)+len(tail))
	out = append(out, head...)
	out = append(out, window...)
	out = append(out, tail...)
	m.completed("word", start, out)
	return out, nil
}

// seed builds an initial window of order words around word from the
// chain of one direction. A Sentinel seed yields a window at the start
// (forward) or end (backward) of a learned sequence.
func (m *Model) seed(word string, dir markov.Direction) (markov.Window, error) {
	start := time.Now()

	table, ok, err := m.chain.Table(dir, word)
	if err != nil {
		return nil, err
	}
	if !ok || table.Len() == 0 {
		return nil, &markov.StartWordError{Word: word, Direction: dir, Err: markov.ErrNoSuchWord}
	}

	contexts := table.Contexts()
	context := contexts[m.rng.Intn(len(contexts))]

	window := make(markov.Window, 0, m.Order())
	if markov.IsSentinel(word) {
		next, ok := table.Get(context).Choose(m.rng)
		if !ok || markov.IsSentinel(next) {
			return nil, &markov.StartWordError{Word: word, Direction: dir, Err: markov.ErrStartWordSequenceTooShort}
		}
		if dir == markov.Forward {
			window = append(append(window, context...), next)
		} else {
			window = append(append(window, next), context...)
		}
	} else if dir == markov.Forward {
		window = append(append(window, word), context...)
	} else {
		window = append(append(window, context...), word)
	}

	m.handler.Emit(annotations.GenerateSeeded, start, map[string]interface{}{
		"word":      word,
		"direction": dir.String(),
		"window":    window.String(),
	})
	return window, nil
}

// expand walks the chain of one direction from window until a terminator
// is drawn or the state was never learned. It returns only the new
// words, in reading order.
func (m *Model) expand(window markov.Window, dir markov.Direction) ([]string, error) {
	start := time.Now()
	n := len(window)

	var grown []string
	for {
		var boundary string
		var context []string
		if dir == markov.Forward {
			boundary, context = window[0], window[1:]
		} else {
			boundary, context = window[n-1], window[:n-1]
		}

		next, err := m.chain.Lookup(dir, boundary, context)
		if err != nil {
			return nil, err
		}
		word, ok := next.Choose(m.rng)
		if !ok || markov.IsSentinel(word) {
			break
		}
		grown = append(grown, word)
		window = window.Slide(dir, word)
	}

	if dir == markov.Backward {
		slices.Reverse(grown)
	}
	m.handler.Emit(annotations.GenerateExpanded, start, map[string]interface{}{
		"direction":   dir.String(),
		"words.count": len(grown),
	})
	return grown, nil
}

func (m *Model) completed(mode string, start time.Time, out []string) {
	m.handler.Emit(annotations.GenerateCompleted, start, map[string]interface{}{
		"mode":        mode,
		"words.count": len(out),
	})
}

func (m *Model) failed(mode string, start time.Time, err error) error {
	m.handler.Emit(annotations.GenerateFailed, start, map[string]interface{}{
		"mode":  mode,
		"error": err.Error(),
	})
	return err
}
