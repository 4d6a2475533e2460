package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lamdp/shiptrack/internal/core/domain"
)

// =============================================================================
// FromUser Tests
// =============================================================================

func TestFromUser_Admin(t *testing.T) {
	ctx := FromUser(&domain.User{Username: "admin", IsAdmin: true})

	assert.True(t, ctx.Authenticated)
	assert.True(t, ctx.IsAdmin)
	assert.False(t, ctx.IsStore)
	assert.Equal(t, "admin", ctx.Username)
	assert.Empty(t, ctx.StoreName)
}

func TestFromUser_StoreAccount(t *testing.T) {
	ctx := FromUser(&domain.User{
		Username:  "cuahang1",
		IsStore:   true,
		StoreName: "Cửa hàng 1",
	})

	assert.True(t, ctx.Authenticated)
	assert.True(t, ctx.IsStore)
	assert.Equal(t, "Cửa hàng 1", ctx.StoreName)
}

func TestFromUser_StoreAccountDerivesStoreName(t *testing.T) {
	// Store accounts created without an explicit store name fall back to
	// the name derived from the username.
	ctx := FromUser(&domain.User{Username: "cuahang2", IsStore: true})

	assert.Equal(t, "Cửa hàng 2", ctx.StoreName)
}

// =============================================================================
// Context Storage Tests
// =============================================================================

func TestWithContext_FromContext(t *testing.T) {
	original := Context{
		Username:      "staff",
		Authenticated: true,
	}

	ctx := WithContext(context.Background(), original)
	retrieved := FromContext(ctx)

	assert.Equal(t, original, retrieved)
}

func TestFromContext_NoAuthContext(t *testing.T) {
	retrieved := FromContext(context.Background())

	assert.False(t, retrieved.Authenticated)
	assert.Empty(t, retrieved.Username)
}
