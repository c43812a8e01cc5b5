package ident

import (
	"encoding/json"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	alloc := ObjectIDs()
	id := alloc.NewID()

	parsed, err := Parse(id.Hex())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseRejectsMalformedTokens(t *testing.T) {
	for _, tok := range []string{
		"",
		"abc",
		"zzzzzzzzzzzzzzzzzzzzzzzz",
		"68b1c2d3e4f5a6b7c8d9e0f1a2", // too long
	} {
		_, err := Parse(tok)
		assert.Error(t, err, "token %q", tok)
	}
}

func TestObjectIDsStrictlyIncrease(t *testing.T) {
	alloc := ObjectIDs()
	prev := alloc.NewID()
	for i := 0; i < 1000; i++ {
		next := alloc.NewID()
		require.True(t, prev.Less(next), "id %s not less than %s", prev, next)
		prev = next
	}
}

func TestObjectIDsUniqueUnderConcurrency(t *testing.T) {
	const goroutines = 8
	const perGoroutine = 500

	alloc := ObjectIDs()
	var mu sync.Mutex
	all := make([]ID, 0, goroutines*perGoroutine)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]ID, perGoroutine)
			for i := range local {
				local[i] = alloc.NewID()
			}
			// Each goroutine's own sequence must be strictly increasing.
			for i := 1; i < len(local); i++ {
				if !local[i-1].Less(local[i]) {
					t.Errorf("out of order: %s then %s", local[i-1], local[i])
					return
				}
			}
			mu.Lock()
			all = append(all, local...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(all, func(i, j int) bool { return all[i].Less(all[j]) })
	for i := 1; i < len(all); i++ {
		require.NotEqual(t, all[i-1], all[i], "duplicate id allocated")
	}
}

func TestSequenceIsDeterministic(t *testing.T) {
	alloc := Sequence(0)
	first := alloc.NewID()
	second := alloc.NewID()
	assert.True(t, first.Less(second))

	again := Sequence(0)
	assert.Equal(t, first, again.NewID())
}

func TestJSONEmbedding(t *testing.T) {
	type wrapper struct {
		ID     ID  `json:"id"`
		Cursor *ID `json:"cursor,omitempty"`
	}

	id := Sequence(41).NewID()
	data, err := json.Marshal(wrapper{ID: id})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+id.Hex()+`"}`, string(data))

	var out wrapper
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, id, out.ID)
	assert.Nil(t, out.Cursor)
}
