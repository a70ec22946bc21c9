package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/skolar-erp/skolar/internal/observability"
	"github.com/skolar-erp/skolar/internal/shared"
)

// TxEntryStore writes entries inside a caller-owned transaction.
type TxEntryStore interface {
	InsertTx(ctx context.Context, tx pgx.Tx, e Entry) error
}

// Capture is the storage-level audit path. Audited repositories call it
// inside the same transaction as the mutation, so a rollback of the business
// write discards the audit row too: this path records committed changes only.
// An unconfigured resource is a no-op. A write failure is returned to the
// caller because a committed-but-unaudited mutation would break losslessness.
type Capture struct {
	registry *Registry
	store    TxEntryStore
	metrics  *observability.Metrics
}

// NewCapture constructs the storage-level capture path.
func NewCapture(registry *Registry, store TxEntryStore, metrics *observability.Metrics) *Capture {
	return &Capture{registry: registry, store: store, metrics: metrics}
}

// RecordCreate captures an insert. newRow is the full row after the write.
func (c *Capture) RecordCreate(ctx context.Context, tx pgx.Tx, resource, recordID string, newRow any) error {
	return c.record(ctx, tx, OpCreate, resource, recordID, nil, newRow)
}

// RecordUpdate captures an update with full before/after snapshots.
func (c *Capture) RecordUpdate(ctx context.Context, tx pgx.Tx, resource, recordID string, oldRow, newRow any) error {
	return c.record(ctx, tx, OpUpdate, resource, recordID, oldRow, newRow)
}

// RecordDelete captures a delete. oldRow is the row as it existed.
func (c *Capture) RecordDelete(ctx context.Context, tx pgx.Tx, resource, recordID string, oldRow any) error {
	return c.record(ctx, tx, OpDelete, resource, recordID, oldRow, nil)
}

func (c *Capture) record(ctx context.Context, tx pgx.Tx, op, resource, recordID string, oldRow, newRow any) error {
	cfg, ok := c.registry.Get(resource)
	if !ok || !cfg.Tracks(op) {
		return nil
	}

	oldValues, err := Snapshot(oldRow)
	if err != nil {
		return fmt.Errorf("audit: %s %s: %w", op, resource, err)
	}
	newValues, err := Snapshot(newRow)
	if err != nil {
		return fmt.Errorf("audit: %s %s: %w", op, resource, err)
	}

	var changed []string
	if op == OpUpdate {
		changed = stripExcluded(cfg, ChangedFields(oldValues, newValues))
	}

	info := shared.RequestInfoFromContext(ctx)
	entry := Entry{
		Action:        op,
		Resource:      resource,
		RecordID:      recordID,
		ActorID:       info.ActorID,
		ActorEmail:    info.ActorEmail,
		ActorRole:     info.ActorRole,
		SchoolID:      info.SchoolID,
		SchoolName:    info.SchoolName,
		IP:            info.IP,
		UserAgent:     info.UserAgent,
		RequestID:     info.RequestID,
		OldValues:     applyFieldPolicy(cfg, oldValues),
		NewValues:     applyFieldPolicy(cfg, newValues),
		ChangedFields: changed,
		Success:       true,
	}
	if err := c.store.InsertTx(ctx, tx, entry); err != nil {
		return err
	}
	c.metrics.AuditWrite("storage")
	return nil
}
