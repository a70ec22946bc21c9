package audit

import "time"

// Operation kinds recorded in the audit log.
const (
	OpCreate = "CREATE"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
	OpLogin  = "LOGIN"
	OpLogout = "LOGOUT"
	OpAccess = "ACCESS"
)

// Grant mutations recorded by the application-level wrapper. These extend the
// core kinds above on the export surface and in the action filter; they carry
// no row snapshots and are not retention-protected.
const (
	OpGrantRole  = "GRANT_ROLE"
	OpRevokeRole = "REVOKE_ROLE"
)

// protectedOps are never removed by the retention sweep regardless of age.
var protectedOps = []string{OpDelete, OpLogin, OpLogout}

// Entry is one immutable audit fact. Actor and school fields are denormalized
// at write time because both may change later. Zero ActorID/SchoolID and empty
// strings are stored as null.
type Entry struct {
	ID            int64          `json:"id"`
	Action        string         `json:"action"`
	Resource      string         `json:"resource"`
	RecordID      string         `json:"recordId,omitempty"`
	ActorID       int64          `json:"actorId,omitempty"`
	ActorEmail    string         `json:"actorEmail,omitempty"`
	ActorRole     string         `json:"actorRole,omitempty"`
	SchoolID      int64          `json:"schoolId,omitempty"`
	SchoolName    string         `json:"schoolName,omitempty"`
	IP            string         `json:"ip,omitempty"`
	UserAgent     string         `json:"userAgent,omitempty"`
	RequestID     string         `json:"requestId,omitempty"`
	Description   string         `json:"description,omitempty"`
	OldValues     map[string]any `json:"oldValues,omitempty"`
	NewValues     map[string]any `json:"newValues,omitempty"`
	ChangedFields []string       `json:"changedFields,omitempty"`
	Success       bool           `json:"success"`
	ErrorMessage  string         `json:"errorMessage,omitempty"`
	DurationMs    *int64         `json:"durationMs,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// Config is the per-resource audit policy.
type Config struct {
	Resource        string
	TrackCreate     bool
	TrackUpdate     bool
	TrackDelete     bool
	TrackRead       bool
	SensitiveFields []string
	ExcludedFields  []string
	RetentionDays   int
}

// Tracks reports whether the given operation kind is recorded for this
// resource. Read tracking is opt-in and defaults off.
func (c Config) Tracks(op string) bool {
	switch op {
	case OpCreate:
		return c.TrackCreate
	case OpUpdate:
		return c.TrackUpdate
	case OpDelete:
		return c.TrackDelete
	case OpAccess:
		return c.TrackRead
	default:
		return false
	}
}

// Filters narrows audit log listings. Zero values mean "no filter".
// SchoolID is forced by the query service for non system-wide actors.
type Filters struct {
	Action   string
	Resource string
	ActorID  int64
	SchoolID int64
	Search   string
	From     time.Time
	To       time.Time
	Page     int
	PageSize int
}
