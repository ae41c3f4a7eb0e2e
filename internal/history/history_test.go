package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/kiln/internal/status"
	"github.com/jbweber/kiln/internal/watch"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func event(name string, state status.State, minute int) watch.Event {
	return watch.Event{
		Name:       name,
		State:      state,
		ObservedAt: time.Date(2026, 3, 1, 12, minute, 0, 0, time.UTC),
	}
}

func TestAppendAndList(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Append(event("vm1", status.StateRunning, 0)))
	require.NoError(t, s.Append(event("vm10", status.StatePaused, 1)))
	require.NoError(t, s.Append(event("vm1", status.StateInShutdown, 2)))
	require.NoError(t, s.Emit(context.Background(), event("vm1", status.StateDefinedStopped, 3)))

	got, err := s.List("vm1", 0)
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, status.StateRunning, got[0].State)
	assert.Equal(t, status.StateInShutdown, got[1].State)
	assert.Equal(t, status.StateDefinedStopped, got[2].State)
	assert.True(t, got[2].ObservedAt.Equal(time.Date(2026, 3, 1, 12, 3, 0, 0, time.UTC)))

	other, err := s.List("vm10", 0)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "vm10", other[0].Name)
}

func TestList_Limit(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(event("vm1", status.StateRunning, i)))
	}

	got, err := s.List("vm1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].ObservedAt.Minute())
	assert.Equal(t, 4, got[1].ObservedAt.Minute())
}

func TestList_UnknownDomain(t *testing.T) {
	s := openTestStore(t)

	got, err := s.List("ghost", 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestReopenKeepsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(event("vm1", status.StateRunning, 0)))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Append(event("vm1", status.StateCrashed, 1)))

	got, err := s.List("vm1", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, status.StateCrashed, got[1].State)
}
