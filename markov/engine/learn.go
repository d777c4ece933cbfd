package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/wbrown/dadacore/markov"
	"github.com/wbrown/dadacore/markov/annotations"
)

// Learn records every window of a token sequence in both directions.
//
// The sequence is framed by the Sentinel on each side and walked in
// windows of order+1 words. Tokens are lowercased. A sequence shorter
// than order+1 is rejected with a *markov.SequenceTooShortError before
// anything is written. Learning the same sequence twice changes nothing.
func (m *Model) Learn(tokens []string) error {
	start := time.Now()
	order := m.Order()

	if len(tokens) < order+1 {
		m.handler.Emit(annotations.LearnRejected, start, map[string]interface{}{
			"tokens.count": len(tokens),
			"order":        order,
		})
		return &markov.SequenceTooShortError{Got: len(tokens), Need: order + 1}
	}

	words := make([]string, len(tokens))
	for i, tok := range tokens {
		if tok == "" {
			return fmt.Errorf("%w at position %d", markov.ErrEmptyToken, i)
		}
		words[i] = strings.ToLower(tok)
	}

	windows, written := 0, 0
	record := func(w markov.Window) error {
		n, err := m.learnWindow(w)
		windows++
		written += n
		return err
	}

	window := make(markov.Window, 0, order+1)
	window = append(window, markov.Sentinel)
	window = append(window, words[:order]...)
	for _, word := range words[order:] {
		if err := record(window); err != nil {
			return err
		}
		window = window.Slide(markov.Forward, word)
	}
	if err := record(window); err != nil {
		return err
	}
	if err := record(window.Slide(markov.Forward, markov.Sentinel)); err != nil {
		return err
	}

	m.handler.Emit(annotations.LearnSequence, start, map[string]interface{}{
		"tokens.count":  len(tokens),
		"windows.count": windows,
		"roots.written": written,
	})
	return nil
}

// learnWindow merges one window into both chains and returns how many
// root tables changed
func (m *Model) learnWindow(w markov.Window) (int, error) {
	if markov.IsSentinel(w[0]) && markov.IsSentinel(w[len(w)-1]) {
		return 0, fmt.Errorf("window %s is bounded by the sentinel on both sides", w)
	}

	written := 0
	for _, dir := range []markov.Direction{markov.Forward, markov.Backward} {
		changed, err := m.chain.Record(dir, w.Boundary(dir), w.Middle(), w.Continuation(dir))
		if err != nil {
			return written, err
		}
		if changed {
			written++
		}
	}
	return written, nil
}
