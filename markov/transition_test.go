package markov

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionMerge(t *testing.T) {
	t.Run("AbsentToSingle", func(t *testing.T) {
		var tr Transition
		assert.True(t, tr.IsAbsent())

		tr = tr.Merge("cat")
		assert.Equal(t, Single, tr.Kind())
		assert.Equal(t, []string{"cat"}, tr.Words())
	})

	t.Run("SameWordUnchanged", func(t *testing.T) {
		tr := NewSingle("cat").Merge("cat")
		assert.Equal(t, Single, tr.Kind())
		assert.Equal(t, 1, tr.Len())
	})

	t.Run("PromoteToMany", func(t *testing.T) {
		tr := NewSingle("cat").Merge("dog")
		assert.Equal(t, Many, tr.Kind())
		assert.Equal(t, []string{"cat", "dog"}, tr.Words())
	})

	t.Run("ManyAppendsOnlyNewWords", func(t *testing.T) {
		tr := NewSingle("cat").Merge("dog").Merge("cat").Merge(Sentinel).Merge("dog")
		assert.Equal(t, Many, tr.Kind())
		assert.Equal(t, []string{"cat", "dog", Sentinel}, tr.Words())
	})

	t.Run("ReceiverNotModified", func(t *testing.T) {
		base := NewSingle("a").Merge("b")
		_ = base.Merge("c")
		assert.Equal(t, []string{"a", "b"}, base.Words())
	})

	t.Run("NewManyDeduplicates", func(t *testing.T) {
		assert.Equal(t, Single, NewMany("x", "x").Kind())
		assert.True(t, NewMany().IsAbsent())
		assert.True(t, NewMany("x", "y", "x").Equal(NewSingle("x").Merge("y")))
	})
}

func TestTransitionChoose(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	_, ok := Transition{}.Choose(rng)
	assert.False(t, ok)

	word, ok := NewSingle("only").Choose(rng)
	require.True(t, ok)
	assert.Equal(t, "only", word)

	tr := NewMany("a", "b", "c")
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		word, ok := tr.Choose(rng)
		require.True(t, ok)
		seen[word] = true
	}
	assert.Len(t, seen, 3)
}

func TestWindow(t *testing.T) {
	w := Window{Sentinel, "the", "cat", "sat"}

	assert.Equal(t, Sentinel, w.Boundary(Forward))
	assert.Equal(t, "sat", w.Boundary(Backward))
	assert.Equal(t, "sat", w.Continuation(Forward))
	assert.Equal(t, Sentinel, w.Continuation(Backward))
	assert.Equal(t, []string{"the", "cat"}, w.Middle())

	gen := Window{"the", "cat"}
	assert.Equal(t, Window{"cat", "sat"}, gen.Slide(Forward, "sat"))
	assert.Equal(t, Window{"a", "the"}, gen.Slide(Backward, "a"))
	assert.Equal(t, Window{"the", "cat"}, gen, "slide must not modify the receiver")

	assert.Equal(t, "[<> the cat sat]", w.String())
}

func TestErrors(t *testing.T) {
	err := error(&StartWordError{Word: "zzz", Direction: Backward, Err: ErrNoSuchWord})
	assert.True(t, errors.Is(err, ErrNoSuchWord))
	assert.True(t, errors.Is(err, ErrStartWord))
	assert.False(t, errors.Is(err, ErrStartWordSequenceTooShort))
	assert.Contains(t, err.Error(), "zzz")

	assert.True(t, errors.Is(ErrStartWordSequenceTooShort, ErrStartWord))

	short := error(&SequenceTooShortError{Got: 2, Need: 5})
	assert.True(t, errors.Is(short, ErrSequenceTooShort))
	var typed *SequenceTooShortError
	require.True(t, errors.As(short, &typed))
	assert.Equal(t, 5, typed.Need)
}
