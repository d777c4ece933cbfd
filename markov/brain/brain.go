// Package brain turns raw text into chain training data and chain output
// back into text. A Brain serialises every call into its model, so one
// handle can be shared by the CLI and concurrent HTTP handlers.
package brain

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wbrown/dadacore/markov"
	"github.com/wbrown/dadacore/markov/annotations"
	"github.com/wbrown/dadacore/markov/chain"
	"github.com/wbrown/dadacore/markov/engine"
	"github.com/wbrown/dadacore/markov/storage"
)

// DefaultPath is where the default backend keeps its data
const DefaultPath = "markovdb"

// maxLineBytes bounds a single line read by LearnLines
const maxLineBytes = 1 << 20

// Options selects and configures the store behind a Brain
type Options struct {
	Backend string // storage backend name; empty selects storage.DefaultBackend
	Path    string // backend location; empty selects DefaultPath
	Order   int    // order for a new model; zero selects markov.DefaultOrder
	Cache   storage.CacheOptions
	Seed    int64 // random seed; zero seeds from the clock
	Handler annotations.Handler
}

// Brain is a thread-safe text front end to a Model
type Brain struct {
	mu       sync.Mutex
	model    *engine.Model
	backend  string
	location string
}

// LearnResult counts the outcome of a LearnLines call
type LearnResult struct {
	Lines   int // Lines read
	Learned int // Lines recorded in the model
	Skipped int // Blank lines and lines too short for the model order
}

// Stats describes a Brain's model and store
type Stats struct {
	Backend  string
	Location string
	Order    int
	Surveyed bool // Summary is valid; false when the backend cannot scan
	Summary  chain.Summary
	Cache    storage.CacheStats
}

// Open opens the configured backend and the model it holds
func Open(ctx context.Context, opts Options) (*Brain, error) {
	start := time.Now()
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	if backend == "" {
		backend = storage.DefaultBackend
	}
	location := opts.Path
	if location == "" && backend != storage.BackendMemory {
		location = DefaultPath
	}

	store, err := storage.Open(ctx, backend, location)
	if err != nil {
		return nil, err
	}

	var rng *rand.Rand
	if opts.Seed != 0 {
		rng = rand.New(rand.NewSource(opts.Seed))
	}
	model, err := engine.Open(store, engine.Options{
		Order:   opts.Order,
		Cache:   opts.Cache,
		Rand:    rng,
		Handler: opts.Handler,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open model: %w", err)
	}

	b := &Brain{model: model, backend: backend, location: displayLocation(location)}
	opts.Handler.Emit(annotations.StoreOpened, start, map[string]interface{}{
		"backend": b.backend,
		"path":    b.location,
		"order":   model.Order(),
	})
	return b, nil
}

// New wraps an already opened model
func New(model *engine.Model) *Brain {
	return &Brain{model: model, backend: "custom"}
}

// Order returns the model's context window size
func (b *Brain) Order() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.model.Order()
}

// Learn tokenizes text and records it. It returns an error wrapping
// markov.ErrSequenceTooShort when text is too short for the model order.
func (b *Brain) Learn(text string) error {
	tokens := Tokenize(text)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.model.Learn(tokens)
}

// LearnLines learns every line of r, skipping blank and too-short lines.
// It does not sync; call Sync once the batch is done.
func (b *Brain) LearnLines(r io.Reader) (LearnResult, error) {
	var res LearnResult
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		res.Lines++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			res.Skipped++
			continue
		}
		err := b.Learn(line)
		if errors.Is(err, markov.ErrSequenceTooShort) {
			res.Skipped++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("line %d: %w", res.Lines, err)
		}
		res.Learned++
	}
	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("read lines: %w", err)
	}
	return res, nil
}

// GenerateRandom returns a sentence-cased line starting the way a
// learned line started
func (b *Brain) GenerateRandom() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tokens, err := b.model.GenerateRandom()
	if err != nil {
		return "", err
	}
	return Render(tokens), nil
}

// GenerateFromWord returns a sentence-cased line containing word
func (b *Brain) GenerateFromWord(word string) (string, error) {
	word = normaliseWord(word)
	b.mu.Lock()
	defer b.mu.Unlock()
	tokens, err := b.model.GenerateFromWord(word)
	if err != nil {
		return "", err
	}
	return Render(tokens), nil
}

// Reply answers a phrase with a line built around one of its words,
// trying longer words first. When no word of the phrase is known it
// falls back to a random line.
func (b *Brain) Reply(phrase string) (string, error) {
	for _, word := range replyCandidates(phrase) {
		out, err := b.GenerateFromWord(word)
		if errors.Is(err, markov.ErrStartWord) {
			continue
		}
		return out, err
	}
	return b.GenerateRandom()
}

// Sync writes pending model changes to the store
func (b *Brain) Sync() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.model.Sync()
}

// Stats syncs pending changes and reports on the model
func (b *Brain) Stats() (Stats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sum, ok, err := b.model.Summary()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Backend:  b.backend,
		Location: b.location,
		Order:    b.model.Order(),
		Surveyed: ok,
		Summary:  sum,
		Cache:    b.model.CacheStats(),
	}, nil
}

// Close syncs and releases the store
func (b *Brain) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.model.Close()
}

func normaliseWord(word string) string {
	tokens := Tokenize(word)
	if len(tokens) == 1 {
		return tokens[0]
	}
	return strings.ToLower(strings.TrimSpace(word))
}

// replyCandidates returns the distinct words of phrase, longest first
func replyCandidates(phrase string) []string {
	seen := make(map[string]bool)
	var words []string
	for _, tok := range Tokenize(phrase) {
		if IsWord(tok) && !seen[tok] {
			seen[tok] = true
			words = append(words, tok)
		}
	}
	sort.SliceStable(words, func(i, j int) bool {
		return len([]rune(words[i])) > len([]rune(words[j]))
	})
	return words
}

// displayLocation hides credentials in connection URLs
func displayLocation(location string) string {
	u, err := url.Parse(location)
	if err != nil || u.User == nil {
		return location
	}
	return u.Redacted()
}
