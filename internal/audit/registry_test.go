package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingConfigStore struct{ err error }

func (f failingConfigStore) ListConfigs(ctx context.Context) ([]Config, error) {
	return nil, f.err
}

func TestRegistryReload(t *testing.T) {
	reg := testRegistry(t, Config{Resource: "schools", TrackCreate: true})

	cfg, ok := reg.Get("schools")
	require.True(t, ok)
	assert.True(t, cfg.TrackCreate)

	_, ok = reg.Get("students")
	assert.False(t, ok, "unconfigured resource means do not audit")

	// Reload replaces the whole set.
	reg.store = staticConfigStore{{Resource: "students", TrackCreate: true}}
	require.NoError(t, reg.Reload(context.Background()))
	_, ok = reg.Get("schools")
	assert.False(t, ok)
	_, ok = reg.Get("students")
	assert.True(t, ok)
}

func TestRegistryReloadKeepsOldSetOnError(t *testing.T) {
	reg := testRegistry(t, Config{Resource: "schools", TrackCreate: true})
	reg.store = failingConfigStore{err: errors.New("connection refused")}

	require.Error(t, reg.Reload(context.Background()))
	_, ok := reg.Get("schools")
	assert.True(t, ok, "a failed reload must not wipe the working policy set")
}

func TestConfigTracks(t *testing.T) {
	cfg := Config{TrackCreate: true, TrackUpdate: true, TrackDelete: true}
	assert.True(t, cfg.Tracks(OpCreate))
	assert.True(t, cfg.Tracks(OpUpdate))
	assert.True(t, cfg.Tracks(OpDelete))
	assert.False(t, cfg.Tracks(OpAccess), "read tracking defaults off")
	assert.False(t, cfg.Tracks("UNKNOWN"))
}
