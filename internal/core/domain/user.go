package domain

import (
	"errors"
	"strings"
)

// =============================================================================
// User Errors
// =============================================================================

var (
	ErrUsernameRequired = errors.New("username is required")
	ErrPasswordRequired = errors.New("password is required")
)

// =============================================================================
// User
// =============================================================================

// User is an operator account. Store accounts are pinned to a store: the
// shipments they create carry their store name and their listings are scoped
// to it.
type User struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	IsAdmin      bool   `json:"is_admin"`
	IsStore      bool   `json:"is_store"`
	StoreName    string `json:"store_name,omitempty"`
}

// ValidateCredentialsInput checks the raw login/upsert input before any
// hashing happens.
func ValidateCredentialsInput(username, password string) error {
	if strings.TrimSpace(username) == "" {
		return ErrUsernameRequired
	}
	if password == "" {
		return ErrPasswordRequired
	}
	return nil
}

// StoreNameFromUsername derives a display store name from the legacy
// cuahangN account naming when no store is assigned in the database.
func StoreNameFromUsername(username string) string {
	if !strings.HasPrefix(username, "cuahang") {
		return ""
	}
	num := strings.TrimPrefix(username, "cuahang")
	if num == "" {
		return ""
	}
	return "Cửa hàng " + num
}
