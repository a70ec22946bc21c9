package shared

import (
	"context"
)

type sessionContextKey struct{}

type requestInfoContextKey struct{}

// RequestInfo carries the acting identity and request metadata for one inbound
// operation. It is set once by the middleware stack and read by both the
// application-level audit recorder and the repositories writing audit rows
// inside the mutating transaction.
type RequestInfo struct {
	ActorID    int64
	ActorEmail string
	ActorRole  string
	SchoolID   int64
	SchoolName string
	IP         string
	UserAgent  string
	RequestID  string
}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// ContextWithRequestInfo stores the request info in context.
func ContextWithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoContextKey{}, info)
}

// RequestInfoFromContext extracts the request info from context. The zero
// value is returned when nothing is set; audit writers store missing fields
// as null instead of failing the guarded operation.
func RequestInfoFromContext(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoContextKey{}).(RequestInfo)
	return info
}
