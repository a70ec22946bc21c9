package app

import (
	"context"
	"log/slog"

	"github.com/skolar-erp/skolar/internal/rbac"
	"github.com/skolar-erp/skolar/internal/schools"
	"github.com/skolar-erp/skolar/internal/shared"
	"github.com/skolar-erp/skolar/internal/users"
)

// Identity resolves the denormalized actor and school fields stamped into
// every RequestInfo. Failures degrade to partially-filled info; they must not
// block the request, authorization checks fail closed on their own.
type Identity struct {
	Users   *users.Repository
	RBAC    *rbac.Service
	Schools *schools.Repository
	Logger  *slog.Logger
}

// Resolve fills actor and school fields for the given user and school scope.
func (i Identity) Resolve(ctx context.Context, userID, schoolID int64) shared.RequestInfo {
	info := shared.RequestInfo{ActorID: userID, SchoolID: schoolID}
	if i.Users != nil {
		if user, err := i.Users.GetUser(ctx, userID); err == nil {
			info.ActorEmail = user.Email
		} else if i.Logger != nil {
			i.Logger.Warn("resolve actor", slog.Int64("user_id", userID), slog.Any("error", err))
		}
	}
	if i.RBAC != nil {
		if roles, err := i.RBAC.RoleNames(ctx, userID); err == nil && len(roles) > 0 {
			info.ActorRole = roles[0]
		}
	}
	if schoolID != 0 && i.Schools != nil {
		if school, err := i.Schools.GetSchool(ctx, schoolID); err == nil {
			info.SchoolName = school.Name
		}
	}
	return info
}
