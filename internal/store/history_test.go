package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *HistoryStore {
	t.Helper()
	h, err := NewHistoryStore(filepath.Join(t.TempDir(), "tally.db"))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestHistoryStore_Messages(t *testing.T) {
	h := newTestStore(t)

	require.NoError(t, h.AddMessage("chat-1", "human", "What is 6 times 7?"))
	require.NoError(t, h.AddMessage("chat-2", "human", "other chat"))
	require.NoError(t, h.AddMessage("chat-1", "ai", "42"))
	require.NoError(t, h.AddMessage("chat-1", "human", "And 20 / 4?"))

	history, err := h.GetHistory("chat-1", 2)
	require.NoError(t, err)
	assert.Equal(t, []Message{
		{Role: "ai", Content: "42"},
		{Role: "human", Content: "And 20 / 4?"},
	}, history)

	history, err = h.GetHistory("chat-3", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestHistoryStore_PlanCache(t *testing.T) {
	h := newTestStore(t)
	query := "What is 6 times 7?"

	_, ok, err := h.LoadPlan(query)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, h.SavePlan(query, []byte(`{"sub_queries":[{"id":1}]}`)))
	plan, ok, err := h.LoadPlan(query)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"sub_queries":[{"id":1}]}`, string(plan))

	hits, err := h.PlanHits(query)
	require.NoError(t, err)
	assert.Equal(t, 1, hits)

	// Saving again replaces the plan and resets the counter.
	require.NoError(t, h.SavePlan(query, []byte(`{"sub_queries":[{"id":2}]}`)))
	plan, ok, err = h.LoadPlan(query)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"sub_queries":[{"id":2}]}`, string(plan))

	hits, err = h.PlanHits(query)
	require.NoError(t, err)
	assert.Equal(t, 1, hits)

	require.NoError(t, h.ForgetPlan(query))
	_, ok, err = h.LoadPlan(query)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHistoryStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tally.db")

	h, err := NewHistoryStore(path)
	require.NoError(t, err)
	require.NoError(t, h.SavePlan("q", []byte(`{}`)))
	require.NoError(t, h.Close())

	h, err = NewHistoryStore(path)
	require.NoError(t, err)
	defer h.Close()

	_, ok, err := h.LoadPlan("q")
	require.NoError(t, err)
	assert.True(t, ok)
}
