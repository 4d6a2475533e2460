// Package auth provides the request authentication context and the
// authorization rules for shipment operations.
package auth

import (
	"context"

	"github.com/lamdp/shiptrack/internal/core/domain"
)

// =============================================================================
// Context Key
// =============================================================================

type contextKey string

const authContextKey contextKey = "auth"

// =============================================================================
// Types
// =============================================================================

// Context is the authentication context for a request. It is resolved from
// the session token by the auth middleware and stored in the request context.
type Context struct {
	// Username of the logged-in operator.
	Username string

	// IsAdmin grants user, supplier, store and audit administration.
	IsAdmin bool

	// IsStore marks a store account. Store accounts only see shipments
	// addressed to their own store.
	IsStore bool

	// StoreName is the store a store account is pinned to.
	StoreName string

	// Authenticated indicates whether the request carries a valid session.
	Authenticated bool
}

// FromUser builds an authenticated context for a user record.
func FromUser(u *domain.User) Context {
	storeName := u.StoreName
	if u.IsStore && storeName == "" {
		storeName = domain.StoreNameFromUsername(u.Username)
	}
	return Context{
		Username:      u.Username,
		IsAdmin:       u.IsAdmin,
		IsStore:       u.IsStore,
		StoreName:     storeName,
		Authenticated: true,
	}
}

// =============================================================================
// Context Storage
// =============================================================================

// WithContext stores the auth context in the request context.
func WithContext(ctx context.Context, authCtx Context) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

// FromContext retrieves the auth context from the request context.
// If no auth context is found, returns an unauthenticated context.
func FromContext(ctx context.Context) Context {
	if authCtx, ok := ctx.Value(authContextKey).(Context); ok {
		return authCtx
	}
	return Context{Authenticated: false}
}
