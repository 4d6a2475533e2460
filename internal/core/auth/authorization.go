package auth

import (
	"github.com/lamdp/shiptrack/internal/core/domain"
)

// =============================================================================
// Shipment Authorization
// =============================================================================

// CanViewShipment checks if the user can view a shipment.
// Admins and regular staff see everything. Store accounts only see
// shipments addressed to their own store.
func CanViewShipment(ctx Context, s domain.Shipment) bool {
	if !ctx.Authenticated {
		return false
	}
	if !ctx.IsStore {
		return true
	}
	return s.StoreName == ctx.StoreName
}

// CanCreateShipment checks if the user can record a new shipment.
// Any authenticated account can create shipments; store accounts are
// forced onto their own store by ShipmentStoreScope.
func CanCreateShipment(ctx Context) bool {
	return ctx.Authenticated
}

// CanModifyShipment checks if the user can edit or change the status of a
// shipment. Store accounts can only touch their own store's shipments.
func CanModifyShipment(ctx Context, s domain.Shipment) bool {
	return CanViewShipment(ctx, s)
}

// ShipmentStoreScope returns the store name a listing must be restricted to,
// or "" when the user may see all stores.
func ShipmentStoreScope(ctx Context) string {
	if ctx.IsStore {
		return ctx.StoreName
	}
	return ""
}

// =============================================================================
// Transfer Authorization
// =============================================================================

// CanManageTransfers checks if the user can create, edit and complete
// transfer slips. Store accounts cannot move stock between stores.
func CanManageTransfers(ctx Context) bool {
	return ctx.Authenticated && !ctx.IsStore
}

// CanViewTransfer checks if the user can view transfer slips. Slips are a
// back-office view, so store accounts are excluded like for management.
func CanViewTransfer(ctx Context) bool {
	return ctx.Authenticated && !ctx.IsStore
}

// =============================================================================
// Administration
// =============================================================================

// CanManageUsers checks if the user can create, update and delete accounts.
func CanManageUsers(ctx Context) bool {
	return ctx.Authenticated && ctx.IsAdmin
}

// CanManageSuppliers checks if the user can create, rename and deactivate
// suppliers.
func CanManageSuppliers(ctx Context) bool {
	return ctx.Authenticated && ctx.IsAdmin
}

// CanManageStores checks if the user can create, rename and deactivate stores.
func CanManageStores(ctx Context) bool {
	return ctx.Authenticated && ctx.IsAdmin
}

// CanViewAuditLog checks if the user can read the audit trail.
func CanViewAuditLog(ctx Context) bool {
	return ctx.Authenticated && ctx.IsAdmin
}

// =============================================================================
// Generic Helpers
// =============================================================================

// RequireAuthentication checks if the context is authenticated.
// Returns (true, "") if authenticated, or (false, "authentication required") if not.
func RequireAuthentication(ctx Context) (bool, string) {
	if !ctx.Authenticated {
		return false, "authentication required"
	}
	return true, ""
}
