package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	user, err := CreateUser("listener", "listener@example.com", "secret-password")
	require.NoError(t, err)

	assert.Equal(t, ROLE_USER, user.Role)
	assert.Equal(t, STATUS_INACTIVE, user.Status)
	assert.NotEqual(t, "secret-password", user.Password)
	assert.True(t, user.CheckPassword("secret-password"))
	assert.False(t, user.CheckPassword("wrong"))
}

func TestCreateUser_Invalid(t *testing.T) {
	_, err := CreateUser("ab", "not-an-email", "x")
	assert.Error(t, err)
}

func TestHashAPIKey(t *testing.T) {
	first := HashAPIKey("sk_live_abc")
	second := HashAPIKey("sk_live_abc")

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
	assert.NotEqual(t, first, HashAPIKey("sk_live_other"))
}

func TestUserIsActive(t *testing.T) {
	assert.True(t, (&User{Status: STATUS_ACTIVE}).IsActive())
	assert.False(t, (&User{Status: STATUS_INACTIVE}).IsActive())
	assert.False(t, (&User{Status: STATUS_DISABLED}).IsActive())
}
