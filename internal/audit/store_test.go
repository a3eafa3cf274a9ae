package audit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)

	s.Record(Event{
		RequestID:   "req-1",
		Operation:   "click",
		Identity:    "alice",
		ProcessPath: "/opt/app/bin/automation",
		Decision:    DecisionAllowed,
		Reason:      "none",
		DurationMs:  3,
	})
	s.Record(Event{
		RequestID: "req-2",
		Operation: "fileWrite",
		Identity:  "alice",
		Decision:  DecisionDenied,
		Reason:    "path_not_writable",
	})
	s.Flush()

	events, err := s.Recent(0, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "req-1", events[0].RequestID)
	assert.Equal(t, DecisionAllowed, events[0].Decision)
	assert.Equal(t, "req-2", events[1].RequestID)
	assert.Equal(t, DecisionDenied, events[1].Decision)
	assert.False(t, events[0].Time.IsZero())

	// afterID pagination picks up where the last poll left off.
	tail, err := s.Recent(events[0].ID, 10)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "req-2", tail[0].RequestID)
}

func TestPruneBefore(t *testing.T) {
	s := openTestStore(t)

	old := time.Now().Add(-48 * time.Hour)
	s.Record(Event{RequestID: "old", Operation: "click", Decision: DecisionAllowed, Time: old})
	s.Record(Event{RequestID: "new", Operation: "click", Decision: DecisionAllowed})
	s.Flush()

	pruned, err := s.PruneBefore(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	events, err := s.Recent(0, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "new", events[0].RequestID)
}

func TestMetaRoundTrip(t *testing.T) {
	s := openTestStore(t)

	value, err := s.GetMeta("policy_stale")
	require.NoError(t, err)
	assert.Equal(t, "", value, "missing key reads as empty")

	require.NoError(t, s.SetMeta("policy_stale", "2026-08-24T10:00:00Z"))
	value, err = s.GetMeta("policy_stale")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-24T10:00:00Z", value)

	// Upsert replaces.
	require.NoError(t, s.SetMeta("policy_stale", "later"))
	value, err = s.GetMeta("policy_stale")
	require.NoError(t, err)
	assert.Equal(t, "later", value)
}

func TestStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.db")

	s, err := Open(path)
	require.NoError(t, err)
	s.Record(Event{RequestID: "persisted", Operation: "click", Decision: DecisionAllowed})
	s.Flush()
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	events, err := s.Recent(0, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "persisted", events[0].RequestID)
}
