package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangedFields(t *testing.T) {
	oldValues := map[string]any{
		"name":    "Northside High",
		"code":    "NORTH-01",
		"address": nil,
		"phone":   "555-0100",
	}
	newValues := map[string]any{
		"name":    "Northside High School",
		"code":    "NORTH-01",
		"address": nil,
		"email":   "office@northside.example",
	}

	changed := ChangedFields(oldValues, newValues)
	assert.Equal(t, []string{"email", "name", "phone"}, changed)
}

func TestChangedFieldsNullEqualsNull(t *testing.T) {
	// Mirrors IS DISTINCT FROM: null on one side and absent on the other is
	// not a change.
	changed := ChangedFields(
		map[string]any{"address": nil},
		map[string]any{},
	)
	assert.Empty(t, changed)
}

func TestSnapshotNormalizesStructs(t *testing.T) {
	type row struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	snap, err := Snapshot(row{Name: "x", Count: 3})
	require.NoError(t, err)

	// Both sides of a diff pass through JSON, so ints compare as float64.
	assert.False(t, distinctFrom(snap["count"], float64(3)))
}

func TestApplyFieldPolicy(t *testing.T) {
	cfg := Config{
		Resource:        "users",
		SensitiveFields: []string{"password_hash"},
		ExcludedFields:  []string{"updated_at"},
	}
	snap := map[string]any{
		"email":         "a@b.example",
		"password_hash": "$2a$10$abc",
		"updated_at":    "2026-03-01T00:00:00Z",
	}

	out := applyFieldPolicy(cfg, snap)
	assert.Equal(t, RedactedPlaceholder, out["password_hash"])
	assert.NotContains(t, out, "updated_at")
	assert.Equal(t, "a@b.example", out["email"])

	// Original snapshot is untouched.
	assert.Equal(t, "$2a$10$abc", snap["password_hash"])

	assert.Nil(t, applyFieldPolicy(cfg, nil))
}

func TestStripExcludedKeepsSensitive(t *testing.T) {
	cfg := Config{
		SensitiveFields: []string{"password_hash"},
		ExcludedFields:  []string{"updated_at"},
	}
	fields := stripExcluded(cfg, []string{"email", "password_hash", "updated_at"})
	assert.Equal(t, []string{"email", "password_hash"}, fields,
		"sensitive fields stay listed as changed, excluded fields vanish")
}
