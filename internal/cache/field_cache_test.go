package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/webdb/internal/dialects"
)

var userColumns = []dialects.Column{
	{Name: "id", Type: "INTEGER", IsPrimary: true},
	{Name: "email", Type: "TEXT"},
}

func TestNewFieldCache(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		expected int
	}{
		{"positive capacity", 10, 10},
		{"zero capacity defaults", 0, DefaultCapacity},
		{"negative capacity defaults", -1, DefaultCapacity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NewFieldCache(tt.capacity).Stats().Capacity)
		})
	}
}

func TestFieldCache_GetSet(t *testing.T) {
	c := NewFieldCache(4)

	cols, ok := c.Get("users")
	assert.False(t, ok)
	assert.Nil(t, cols)

	c.Set("users", userColumns)
	cols, ok = c.Get("users")
	require.True(t, ok)
	assert.Equal(t, userColumns, cols)

	stats := c.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 0.0001)
}

func TestFieldCache_ReturnsCopies(t *testing.T) {
	c := NewFieldCache(4)
	input := append([]dialects.Column(nil), userColumns...)
	c.Set("users", input)
	input[0].Name = "mutated"

	cols, _ := c.Get("users")
	assert.Equal(t, "id", cols[0].Name)

	cols[1].Type = "BLOB"
	again, _ := c.Get("users")
	assert.Equal(t, "TEXT", again[1].Type)
}

func TestFieldCache_EmptyFieldSetIsCached(t *testing.T) {
	c := NewFieldCache(4)
	c.Set("empty", []dialects.Column{})
	cols, ok := c.Get("empty")
	assert.True(t, ok)
	assert.Empty(t, cols)
}

func TestFieldCache_Eviction(t *testing.T) {
	c := NewFieldCache(2)
	c.Set("a", userColumns)
	c.Set("b", userColumns)
	_, _ = c.Get("a")
	c.Set("c", userColumns)

	_, ok := c.Get("b")
	assert.False(t, ok, "least recently used table should be evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestFieldCache_SetReplaces(t *testing.T) {
	c := NewFieldCache(2)
	c.Set("users", userColumns)
	c.Set("users", userColumns[:1])

	cols, _ := c.Get("users")
	assert.Len(t, cols, 1)
	assert.Equal(t, 1, c.Stats().Size)
}

func TestFieldCache_Invalidate(t *testing.T) {
	c := NewFieldCache(4)
	c.Set("a", userColumns)
	c.Set("b", userColumns)

	c.Invalidate("a", "missing")
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)

	c.Invalidate()
	assert.Equal(t, 0, c.Stats().Size)
}

func TestFieldCache_Concurrent(t *testing.T) {
	c := NewFieldCache(8)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			table := fmt.Sprintf("t%d", i%10)
			c.Set(table, userColumns)
			_, _ = c.Get(table)
			if i%5 == 0 {
				c.Invalidate(table)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Stats().Size, 8)
}
