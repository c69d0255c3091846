package utils_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bakery_ops_backend/pkg/utils"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	utils.ConfigureJWT("round-trip-secret", "bakery-ops-test")

	tok, err := utils.GenerateAccessToken("user-1", "bakery-1", "baker", false, time.Minute)
	require.NoError(t, err)

	claims, err := utils.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "bakery-1", claims.BakeryID)
	assert.Equal(t, "baker", claims.Role)
	assert.False(t, claims.IsPlatformAdmin)
}

func TestValidateToken_Rejects(t *testing.T) {
	utils.ConfigureJWT("first-secret", "bakery-ops-test")
	signedWithOld, err := utils.GenerateAccessToken("user-1", "bakery-1", "", false, time.Minute)
	require.NoError(t, err)
	defaultTTL, err := utils.GenerateAccessToken("user-1", "bakery-1", "", false, -time.Minute)
	require.NoError(t, err)

	utils.ConfigureJWT("second-secret", "bakery-ops-test")
	_, err = utils.ValidateToken(signedWithOld)
	assert.Error(t, err, "token signed with a rotated secret")

	_, err = utils.ValidateToken("garbage")
	assert.Error(t, err)

	// A non-positive ttl falls back to the default lifetime.
	utils.ConfigureJWT("first-secret", "bakery-ops-test")
	_, err = utils.ValidateToken(defaultTTL)
	assert.NoError(t, err)

	utils.ConfigureJWT("first-secret", "someone-else")
	_, err = utils.ValidateToken(signedWithOld)
	assert.Error(t, err, "issuer mismatch")
}
