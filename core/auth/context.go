package auth

import (
	"context"

	"helix-qms/core/store"
)

type contextKey string

// SessionContextKey carries the request's session record through the handler chain.
const SessionContextKey contextKey = "helix.session"

// Actor is the request-scoped identity every core operation receives. Nothing
// in the service layer reads ambient session state.
type Actor struct {
	UserID       int64
	Username     string
	Role         string
	DepartmentID *int64
}

// Scoped reports whether the actor is restricted to one department. Admins
// and quality managers see the whole site; everyone else is pinned to their
// own department no matter what filters the client sends.
func (a Actor) Scoped() bool {
	if a.Role == "admin" || a.Role == "quality_manager" {
		return false
	}
	return a.DepartmentID != nil
}

// EffectiveDepartment resolves the department filter for a read: scoped
// actors always get their own department; unscoped actors get whatever was
// requested (nil means site-wide).
func (a Actor) EffectiveDepartment(requested *int64) *int64 {
	if a.Scoped() {
		return a.DepartmentID
	}
	return requested
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	v := ctx.Value(SessionContextKey)
	if v == nil {
		return Actor{}, false
	}
	sr, ok := v.(*store.SessionRecord)
	if !ok || sr == nil {
		return Actor{}, false
	}
	return Actor{UserID: sr.UserID, Username: sr.Username, Role: sr.Role, DepartmentID: sr.DepartmentID}, true
}

func WithSession(ctx context.Context, sr *store.SessionRecord) context.Context {
	return context.WithValue(ctx, SessionContextKey, sr)
}
