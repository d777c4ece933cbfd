package chain

import (
	"fmt"

	"github.com/wbrown/dadacore/markov"
	"github.com/wbrown/dadacore/markov/codec"
	"github.com/wbrown/dadacore/markov/storage"
)

// Summary counts what a persisted model holds
type Summary struct {
	ForwardRoots  int // Distinct forward boundaries, including the start root
	BackwardRoots int // Distinct backward boundaries, including the end root
	Contexts      int // Context entries across all roots
	Transitions   int // Recorded continuations across all contexts
	Branching     int // Contexts with more than one continuation
}

// Survey scans both namespaces of a persistent store. Only data that has
// reached the store is counted, so flush the cache first.
func Survey(scanner storage.Scanner) (Summary, error) {
	var sum Summary
	for _, dir := range []markov.Direction{markov.Forward, markov.Backward} {
		prefix := []byte{dir.Prefix()}
		err := scanner.Scan(prefix, func(key, value []byte) error {
			table, err := codec.DecodeTable(value)
			if err != nil {
				return fmt.Errorf("decode %q: %w", key, err)
			}
			if dir == markov.Forward {
				sum.ForwardRoots++
			} else {
				sum.BackwardRoots++
			}
			table.Each(func(_ []string, next markov.Transition) {
				sum.Contexts++
				sum.Transitions += next.Len()
				if next.Kind() == markov.Many {
					sum.Branching++
				}
			})
			return nil
		})
		if err != nil {
			return Summary{}, fmt.Errorf("survey %s roots: %w", dir, err)
		}
	}
	return sum, nil
}
