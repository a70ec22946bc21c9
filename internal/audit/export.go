package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// csvHeader is a compatibility surface for operator-facing reporting tools;
// do not reorder.
var csvHeader = []string{
	"id", "created_at", "action", "resource", "record_id",
	"actor_id", "actor_email", "actor_role", "school_id", "school_name",
	"ip", "request_id", "changed_fields", "success", "error_message", "duration_ms",
}

// WriteCSV renders entries as CSV with ISO-8601 timestamps.
func WriteCSV(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, e := range entries {
		var duration string
		if e.DurationMs != nil {
			duration = strconv.FormatInt(*e.DurationMs, 10)
		}
		record := []string{
			strconv.FormatInt(e.ID, 10),
			e.CreatedAt.UTC().Format(time.RFC3339),
			e.Action,
			e.Resource,
			e.RecordID,
			formatID(e.ActorID),
			e.ActorEmail,
			e.ActorRole,
			formatID(e.SchoolID),
			e.SchoolName,
			e.IP,
			e.RequestID,
			strings.Join(e.ChangedFields, ";"),
			strconv.FormatBool(e.Success),
			e.ErrorMessage,
			duration,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// WriteJSON renders entries as a JSON array. Entry json tags define the
// compatibility surface: actor fields flat, changedFields as a string array,
// timestamps as ISO-8601.
func WriteJSON(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	return json.Marshal(entries)
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
