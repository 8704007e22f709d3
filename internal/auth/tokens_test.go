package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fieldwork/taskd/internal/models"
)

func testUser(role models.Role) models.User {
	return models.User{ID: primitive.NewObjectID(), Email: "a@b.c", Role: role, Active: true}
}

func TestIssueVerifyRoundtrip(t *testing.T) {
	tokens, err := NewTokens("secret-for-tests", time.Hour)
	require.NoError(t, err)

	user := testUser(models.RoleManager)
	token, tokenID, expires, err := tokens.Issue(user)
	require.NoError(t, err)
	assert.NotEmpty(t, tokenID)
	assert.True(t, expires.After(time.Now()))

	claims, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleManager, claims.Role)
	assert.Equal(t, tokenID, claims.TokenID)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer, err := NewTokens("secret-one", time.Hour)
	require.NoError(t, err)
	verifier, err := NewTokens("secret-two", time.Hour)
	require.NoError(t, err)

	token, _, _, err := issuer.Issue(testUser(models.RoleTechnician))
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	tokens := &Tokens{secret: []byte("secret-for-tests"), ttl: -time.Hour}
	token, _, _, err := tokens.Issue(testUser(models.RoleTechnician))
	require.NoError(t, err)

	_, err = tokens.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	tokens, err := NewTokens("secret-for-tests", time.Hour)
	require.NoError(t, err)
	_, err = tokens.Verify("not.a.token")
	assert.Error(t, err)
}

func TestNewTokensRequiresSecret(t *testing.T) {
	_, err := NewTokens("", time.Hour)
	assert.Error(t, err)
}

func TestPasswordHashAndCheck(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery", hash)

	assert.True(t, CheckPassword(hash, "correct horse battery"))
	assert.False(t, CheckPassword(hash, "wrong password"))
}

func TestPasswordMinimumLength(t *testing.T) {
	_, err := HashPassword("short")
	assert.Error(t, err)
}
