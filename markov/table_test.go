package markov

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextKeyIsCollisionFree(t *testing.T) {
	// Naive joining would map both of these to "abc"
	assert.NotEqual(t, ContextKey([]string{"ab", "c"}), ContextKey([]string{"a", "bc"}))
	assert.NotEqual(t, ContextKey([]string{"a", ""}), ContextKey([]string{"a"}))
	assert.Equal(t, ContextKey([]string{"x", "y"}), ContextKey([]string{"x", "y"}))
	assert.Equal(t, "", ContextKey(nil))
}

func TestTableLearn(t *testing.T) {
	table := NewTable()
	ctx := []string{"the", "cat"}

	assert.True(t, table.Learn(ctx, "sat"))
	assert.False(t, table.Learn(ctx, "sat"), "learning the same word twice must not change the table")
	assert.True(t, table.Learn(ctx, "ran"))
	assert.False(t, table.Learn(ctx, "ran"))

	next := table.Get(ctx)
	assert.Equal(t, Many, next.Kind())
	assert.Equal(t, []string{"sat", "ran"}, next.Words())
	assert.True(t, table.Get([]string{"no", "such"}).IsAbsent())
	assert.Equal(t, 1, table.Len())
}

func TestTableContextsSorted(t *testing.T) {
	table := NewTable()
	table.Learn([]string{"b"}, "x")
	table.Learn([]string{"a"}, "y")
	table.Learn([]string{"c"}, Sentinel)

	assert.Equal(t, [][]string{{"a"}, {"b"}, {"c"}}, table.Contexts())

	var visited []string
	table.Each(func(context []string, next Transition) {
		visited = append(visited, context[0])
	})
	assert.Equal(t, []string{"a", "b", "c"}, visited)

	// Mutating the returned slice must not leak into the table
	table.Contexts()[0][0] = "zzz"
	assert.False(t, table.Get([]string{"a"}).IsAbsent())
}

func TestTableSetAbsentDeletes(t *testing.T) {
	table := NewTable()
	table.Set([]string{"a"}, NewSingle("b"))
	table.Set([]string{"a"}, Transition{})
	assert.Equal(t, 0, table.Len())
}
