package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skolar-erp/skolar/internal/shared"
)

type mockTxStore struct {
	entries     []Entry
	insertError error
}

func (m *mockTxStore) InsertTx(ctx context.Context, tx pgx.Tx, e Entry) error {
	if m.insertError != nil {
		return m.insertError
	}
	m.entries = append(m.entries, e)
	return nil
}

type schoolRow struct {
	Name         string `json:"name"`
	Code         string `json:"code"`
	ContactEmail string `json:"contact_email"`
	UpdatedAt    string `json:"updated_at"`
}

func TestCaptureRecordUpdate(t *testing.T) {
	reg := testRegistry(t, Config{
		Resource:       "schools",
		TrackUpdate:    true,
		ExcludedFields: []string{"updated_at"},
	})
	store := &mockTxStore{}
	capture := NewCapture(reg, store, nil)

	ctx := shared.ContextWithRequestInfo(context.Background(), shared.RequestInfo{
		ActorID: 7, SchoolID: 10, RequestID: "req-9",
	})
	oldRow := schoolRow{Name: "Northside", Code: "NORTH-01", UpdatedAt: "2026-01-01"}
	newRow := schoolRow{Name: "Northside High", Code: "NORTH-01", UpdatedAt: "2026-03-01"}

	require.NoError(t, capture.RecordUpdate(ctx, nil, "schools", "10", oldRow, newRow))

	require.Len(t, store.entries, 1)
	e := store.entries[0]
	assert.Equal(t, OpUpdate, e.Action)
	assert.Equal(t, "10", e.RecordID)
	assert.Equal(t, int64(7), e.ActorID)
	assert.Equal(t, "req-9", e.RequestID)
	assert.Equal(t, []string{"name"}, e.ChangedFields,
		"excluded fields never appear in changedFields")
	assert.NotContains(t, e.OldValues, "updated_at")
	assert.Equal(t, "Northside", e.OldValues["name"])
	assert.Equal(t, "Northside High", e.NewValues["name"])
}

func TestCaptureRedactsSensitiveFields(t *testing.T) {
	reg := testRegistry(t, Config{
		Resource:        "users",
		TrackCreate:     true,
		SensitiveFields: []string{"password_hash"},
	})
	store := &mockTxStore{}
	capture := NewCapture(reg, store, nil)

	row := map[string]any{"email": "a@b.example", "password_hash": "$2a$10$abc"}
	require.NoError(t, capture.RecordCreate(context.Background(), nil, "users", "1", row))

	require.Len(t, store.entries, 1)
	assert.Equal(t, RedactedPlaceholder, store.entries[0].NewValues["password_hash"])
	assert.Equal(t, "a@b.example", store.entries[0].NewValues["email"])
}

func TestCaptureSkipsUntrackedOperations(t *testing.T) {
	reg := testRegistry(t, Config{Resource: "schools", TrackCreate: true})
	store := &mockTxStore{}
	capture := NewCapture(reg, store, nil)
	ctx := context.Background()

	require.NoError(t, capture.RecordDelete(ctx, nil, "schools", "1", map[string]any{"name": "x"}))
	require.NoError(t, capture.RecordCreate(ctx, nil, "students", "1", map[string]any{"name": "x"}))
	assert.Empty(t, store.entries)
}

func TestCapturePropagatesWriteFailure(t *testing.T) {
	reg := testRegistry(t, Config{Resource: "schools", TrackDelete: true})
	store := &mockTxStore{insertError: errors.New("insert failed")}
	capture := NewCapture(reg, store, nil)

	err := capture.RecordDelete(context.Background(), nil, "schools", "1", map[string]any{"name": "x"})
	assert.Error(t, err, "a committed-but-unaudited mutation would break losslessness")
}
