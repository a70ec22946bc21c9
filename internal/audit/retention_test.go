package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRetentionStore struct {
	swept     []string
	cutoffs   map[string]time.Time
	protected map[string][]string
	removed   map[string]int64
	errors    map[string]error
}

func (m *mockRetentionStore) DeleteExpired(ctx context.Context, resource string, cutoff time.Time, protected []string) (int64, error) {
	m.swept = append(m.swept, resource)
	if m.cutoffs == nil {
		m.cutoffs = make(map[string]time.Time)
		m.protected = make(map[string][]string)
	}
	m.cutoffs[resource] = cutoff
	m.protected[resource] = protected
	if err := m.errors[resource]; err != nil {
		return 0, err
	}
	return m.removed[resource], nil
}

func TestSweeperSkipsUnboundedRetention(t *testing.T) {
	reg := testRegistry(t,
		Config{Resource: "schools", RetentionDays: 365},
		Config{Resource: "audit_logs", RetentionDays: 0},
		Config{Resource: "users", RetentionDays: -1},
	)
	store := &mockRetentionStore{}
	entryStore := &mockEntryStore{}
	sweeper := NewSweeper(reg, store, NewRecorder(entryStore, nil, RecorderConfig{}), nil)

	require.NoError(t, sweeper.Run(context.Background()))
	assert.Equal(t, []string{"schools"}, store.swept,
		"non-positive retention means keep forever")
}

func TestSweeperCutoffAndProtectedActions(t *testing.T) {
	reg := testRegistry(t,
		Config{Resource: "schools", RetentionDays: 365},
		Config{Resource: "users", RetentionDays: 30},
	)
	store := &mockRetentionStore{}
	entryStore := &mockEntryStore{}
	sweeper := NewSweeper(reg, store, NewRecorder(entryStore, nil, RecorderConfig{}), nil)
	at := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	sweeper.now = func() time.Time { return at }

	require.NoError(t, sweeper.Run(context.Background()))

	assert.Equal(t, at.AddDate(0, 0, -365), store.cutoffs["schools"],
		"only entries strictly older than the retention window are eligible")
	assert.Equal(t, at.AddDate(0, 0, -30), store.cutoffs["users"])

	for _, resource := range []string{"schools", "users"} {
		assert.ElementsMatch(t, []string{OpDelete, OpLogin, OpLogout}, store.protected[resource],
			"deletion trails and auth events are kept regardless of age")
		assert.NotContains(t, store.protected[resource], OpCreate,
			"aged CREATE entries are eligible for removal")
	}
}

func TestSweeperContinuesPastFailures(t *testing.T) {
	reg := testRegistry(t,
		Config{Resource: "schools", RetentionDays: 365},
		Config{Resource: "users", RetentionDays: 730},
	)
	store := &mockRetentionStore{
		removed: map[string]int64{"schools": 12, "users": 3},
		errors:  map[string]error{"schools": errors.New("lock timeout")},
	}
	entryStore := &mockEntryStore{}
	sweeper := NewSweeper(reg, store, NewRecorder(entryStore, nil, RecorderConfig{}), nil)

	err := sweeper.Run(context.Background())
	require.Error(t, err, "aggregate failure is reported")
	assert.ElementsMatch(t, []string{"schools", "users"}, store.swept,
		"one resource's failure must not stop the others")

	// One summary entry per resource, success mirroring the sweep outcome.
	require.Len(t, entryStore.entries, 2)
	outcomes := map[string]bool{}
	for _, e := range entryStore.entries {
		assert.Equal(t, OpAccess, e.Action)
		outcomes[e.Resource] = e.Success
	}
	assert.False(t, outcomes["schools"])
	assert.True(t, outcomes["users"])
}
