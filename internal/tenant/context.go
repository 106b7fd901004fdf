package tenant

import (
	"context"

	"github.com/practicedesk/booking-api/internal/model"
)

type contextKey struct{}

// NewContext returns a child context carrying the resolved organization.
// The tenant is always an explicit context value scoped to one operation,
// never process-wide state.
func NewContext(ctx context.Context, org *model.Organization) context.Context {
	return context.WithValue(ctx, contextKey{}, org)
}

// FromContext returns the organization set by NewContext, if any.
func FromContext(ctx context.Context) (*model.Organization, bool) {
	org, ok := ctx.Value(contextKey{}).(*model.Organization)
	return org, ok
}
