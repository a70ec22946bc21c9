package audit

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// RedactedPlaceholder replaces sensitive field values in stored snapshots.
// The field name stays visible so changedFields remains meaningful.
const RedactedPlaceholder = "[REDACTED]"

// Snapshot converts a row struct (or map) into a JSON-normalized field map.
// Normalizing through JSON gives both sides of a diff the same scalar types
// so null-to-null never registers as a change.
func Snapshot(row any) (map[string]any, error) {
	if row == nil {
		return nil, nil
	}
	if m, ok := row.(map[string]any); ok {
		data, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("audit: snapshot: %w", err)
		}
		var out map[string]any
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("audit: snapshot: %w", err)
		}
		return out, nil
	}
	data, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("audit: snapshot: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("audit: snapshot: %w", err)
	}
	return out, nil
}

// ChangedFields returns the sorted set of keys whose values are distinct
// between the two snapshots. A key absent on one side with a null value on
// the other counts as unchanged.
func ChangedFields(oldValues, newValues map[string]any) []string {
	keys := make(map[string]struct{}, len(oldValues)+len(newValues))
	for k := range oldValues {
		keys[k] = struct{}{}
	}
	for k := range newValues {
		keys[k] = struct{}{}
	}
	var changed []string
	for k := range keys {
		if distinctFrom(oldValues[k], newValues[k]) {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

// distinctFrom mirrors SQL's IS DISTINCT FROM: two nulls are equal.
func distinctFrom(a, b any) bool {
	if a == nil && b == nil {
		return false
	}
	if a == nil || b == nil {
		return true
	}
	return !reflect.DeepEqual(a, b)
}

// applyFieldPolicy drops excluded fields and redacts sensitive ones from a
// snapshot. Returns nil for a nil snapshot.
func applyFieldPolicy(cfg Config, snapshot map[string]any) map[string]any {
	if snapshot == nil {
		return nil
	}
	out := make(map[string]any, len(snapshot))
	for k, v := range snapshot {
		out[k] = v
	}
	for _, field := range cfg.ExcludedFields {
		delete(out, field)
	}
	for _, field := range cfg.SensitiveFields {
		if _, ok := out[field]; ok {
			out[field] = RedactedPlaceholder
		}
	}
	return out
}

// stripExcluded removes excluded fields from a changed-field list. Sensitive
// fields are kept: their values are hidden but the fact they changed is not.
func stripExcluded(cfg Config, fields []string) []string {
	if len(cfg.ExcludedFields) == 0 {
		return fields
	}
	excluded := make(map[string]struct{}, len(cfg.ExcludedFields))
	for _, f := range cfg.ExcludedFields {
		excluded[f] = struct{}{}
	}
	out := fields[:0]
	for _, f := range fields {
		if _, drop := excluded[f]; !drop {
			out = append(out, f)
		}
	}
	return out
}
