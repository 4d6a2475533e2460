package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCredentialsInput(t *testing.T) {
	assert.NoError(t, ValidateCredentialsInput("admin", "secret"))
	assert.ErrorIs(t, ValidateCredentialsInput("", "secret"), ErrUsernameRequired)
	assert.ErrorIs(t, ValidateCredentialsInput("   ", "secret"), ErrUsernameRequired)
	assert.ErrorIs(t, ValidateCredentialsInput("admin", ""), ErrPasswordRequired)
}

func TestStoreNameFromUsername(t *testing.T) {
	assert.Equal(t, "Cửa hàng 1", StoreNameFromUsername("cuahang1"))
	assert.Equal(t, "Cửa hàng 12", StoreNameFromUsername("cuahang12"))
	assert.Equal(t, "", StoreNameFromUsername("cuahang"))
	assert.Equal(t, "", StoreNameFromUsername("admin"))
	assert.Equal(t, "", StoreNameFromUsername(""))
}

func TestNewSupplier(t *testing.T) {
	s, err := NewSupplier(" GHN ", "0987654321", "Hà Nội")
	assert.NoError(t, err)
	assert.Equal(t, "GHN", s.Name)
	assert.True(t, s.IsActive)
}

func TestNewSupplier_RequiresName(t *testing.T) {
	_, err := NewSupplier("  ", "", "")
	assert.ErrorIs(t, err, ErrSupplierNameRequired)
}

func TestNewStore(t *testing.T) {
	s, err := NewStore("Kho Chính", "Quận 1", "")
	assert.NoError(t, err)
	assert.Equal(t, "Kho Chính", s.Name)
	assert.False(t, s.CreatedAt.IsZero())
}

func TestNewStore_RequiresName(t *testing.T) {
	_, err := NewStore("", "", "")
	assert.ErrorIs(t, err, ErrStoreNameRequired)
}
