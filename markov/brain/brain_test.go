package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/dadacore/markov"
	"github.com/wbrown/dadacore/markov/annotations"
	"github.com/wbrown/dadacore/markov/storage"
)

func openMemoryBrain(t *testing.T, order int) *Brain {
	t.Helper()
	b, err := Open(context.Background(), Options{Backend: "memory", Order: order, Seed: 1})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"hello", ", ", "world", "!"}, Tokenize("  Hello,  \tWorld!\n"))
	assert.Equal(t, []string{"café", " ", "crème"}, Tokenize("Café CRÈME"), "NFC and unicode lowercase")
	assert.Nil(t, Tokenize("   "))

	assert.True(t, IsWord("café"))
	assert.True(t, IsWord("42"))
	assert.False(t, IsWord(", "))
}

func TestRender(t *testing.T) {
	assert.Equal(t, "Hello, world!", Render([]string{"hello", ", ", "world", "!"}))
	assert.Equal(t, "The cat.", Render([]string{"the", " ", "cat"}))
	assert.Equal(t, "Hi. There.", Render([]string{"hi", ". ", "there"}))
	assert.Equal(t, "Why? Because.", Render([]string{"why", "? ", "because", "."}))
	assert.Equal(t, "Élan vital.", Render([]string{"élan", " ", "vital"}))
}

func TestBrainLearnAndGenerate(t *testing.T) {
	b := openMemoryBrain(t, 2)
	require.NoError(t, b.Learn("The cat sat."))

	out, err := b.GenerateRandom()
	require.NoError(t, err)
	assert.Equal(t, "The cat sat.", out)

	out, err = b.GenerateFromWord("  CAT ")
	require.NoError(t, err)
	assert.Equal(t, "The cat sat.", out)

	_, err = b.GenerateFromWord("dog")
	assert.True(t, errors.Is(err, markov.ErrNoSuchWord))

	err = b.Learn("hi")
	assert.True(t, errors.Is(err, markov.ErrSequenceTooShort))
}

func TestBrainGenerateFromEmpty(t *testing.T) {
	b := openMemoryBrain(t, 2)
	_, err := b.GenerateRandom()
	assert.True(t, errors.Is(err, markov.ErrModelIsEmpty))

	_, err = b.Reply("anything at all")
	assert.True(t, errors.Is(err, markov.ErrModelIsEmpty))
}

func TestBrainReply(t *testing.T) {
	b := openMemoryBrain(t, 2)
	require.NoError(t, b.Learn("The cat sat."))

	out, err := b.Reply("where is the cat?")
	require.NoError(t, err)
	assert.Equal(t, "The cat sat.", out)

	// Unknown words fall back to a random line
	out, err = b.Reply("zzz qqq")
	require.NoError(t, err)
	assert.Equal(t, "The cat sat.", out)

	assert.Equal(t, []string{"where", "the", "cat", "is"}, replyCandidates("Where is the cat? The cat!"))
}

func TestBrainLearnLines(t *testing.T) {
	b := openMemoryBrain(t, 2)

	input := "The cat sat.\n\nhi\nA dog ran.\n"
	res, err := b.LearnLines(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, LearnResult{Lines: 4, Learned: 2, Skipped: 2}, res)

	out, err := b.GenerateFromWord("dog")
	require.NoError(t, err)
	assert.Equal(t, "A dog ran.", out)
}

func TestBrainStats(t *testing.T) {
	b := openMemoryBrain(t, 2)
	require.NoError(t, b.Learn("The cat sat."))

	stats, err := b.Stats()
	require.NoError(t, err)
	assert.Equal(t, "memory", stats.Backend)
	assert.Equal(t, 2, stats.Order)
	assert.True(t, stats.Surveyed)
	assert.Greater(t, stats.Summary.ForwardRoots, 0)
	assert.Greater(t, stats.Summary.BackwardRoots, 0)
	assert.Equal(t, 0, stats.Cache.Dirty, "stats flushes pending writes")
}

func TestBrainOpenErrors(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: "floppy"})
	assert.True(t, errors.Is(err, storage.ErrUnknownBackend))
}

func TestBrainOpenEvent(t *testing.T) {
	collector := annotations.NewCollector(nil)
	b, err := Open(context.Background(), Options{Backend: "memory", Order: 3, Handler: collector.Handler()})
	require.NoError(t, err)
	defer b.Close()

	opened := collector.Named(annotations.StoreOpened)
	require.Len(t, opened, 1)
	assert.Equal(t, "memory", opened[0].Data["backend"])
	assert.Equal(t, 3, opened[0].Data["order"])
}

func TestBrainPersistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b, err := Open(ctx, Options{Path: dir, Order: 2})
	require.NoError(t, err)
	require.NoError(t, b.Learn("The quick brown fox."))
	require.NoError(t, b.Close())

	b, err = Open(ctx, Options{Path: dir})
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, 2, b.Order())

	out, err := b.GenerateFromWord("fox")
	require.NoError(t, err)
	assert.Equal(t, "The quick brown fox.", out)
}

func TestBrainConcurrentUse(t *testing.T) {
	b := openMemoryBrain(t, 2)
	require.NoError(t, b.Learn("The cat sat on the mat."))

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			errs <- b.Learn(fmt.Sprintf("Line number %d was learned.", i))
		}(i)
		go func() {
			defer wg.Done()
			_, err := b.GenerateRandom()
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	require.NoError(t, b.Sync())
}

func TestDisplayLocation(t *testing.T) {
	assert.Equal(t, "markovdb", displayLocation("markovdb"))
	assert.Equal(t, "postgres://dada:xxxxx@db:5432/chain", displayLocation("postgres://dada:secret@db:5432/chain"))
}
