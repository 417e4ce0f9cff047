package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken("u1", "linh@x.com", RoleCustomer, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "linh@x.com", claims.Email)
	assert.False(t, claims.IsStaff())
}

func TestParseTokenRejects(t *testing.T) {
	expired, err := GenerateToken("u1", "a@b.c", RoleStaff, -time.Minute)
	require.NoError(t, err)
	noRole, err := GenerateToken("u1", "a@b.c", "", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "expired", token: expired},
		{name: "missing role", token: noRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(tt.token)
			assert.Error(t, err)
		})
	}
}

func TestStaffRoles(t *testing.T) {
	assert.True(t, (&CustomClaims{Role: RoleAdmin}).IsStaff())
	assert.True(t, (&CustomClaims{Role: RoleStaff}).IsStaff())
	assert.False(t, (&CustomClaims{Role: RoleCustomer}).IsStaff())
}
