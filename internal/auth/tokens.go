// Package auth provides password hashing, JWT issuing/verification and the
// gin middleware that guards the API.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fieldwork/taskd/internal/models"
)

// Claims is the validated content of an access token.
type Claims struct {
	UserID  primitive.ObjectID
	Role    models.Role
	TokenID string
	Expires time.Time
}

// Tokens issues and verifies HS256 access tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

// NewTokens constructs a token signer with the given secret and lifetime.
func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	if secret == "" {
		return nil, fmt.Errorf("empty jwt secret")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tokens{secret: []byte(secret), ttl: ttl}, nil
}

// Issue signs a token for the user. The jti is recorded in the login-session
// collection by the caller so logout can revoke it.
func (t *Tokens) Issue(user models.User) (token string, tokenID string, expires time.Time, err error) {
	tokenID = uuid.NewString()
	expires = time.Now().Add(t.ttl)

	claims := jwt.MapClaims{
		"sub":  user.ID.Hex(),
		"role": user.Role.String(),
		"jti":  tokenID,
		"iat":  time.Now().Unix(),
		"exp":  expires.Unix(),
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, tokenID, expires, nil
}

// Verify parses and validates a token string, returning its claims. The role
// claim goes through ParseRole so a malformed role can never pass a guard.
func (t *Tokens) Verify(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("token validation failed: %w", err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("invalid claims type")
	}

	sub, _ := mapClaims["sub"].(string)
	userID, err := primitive.ObjectIDFromHex(sub)
	if err != nil {
		return Claims{}, fmt.Errorf("invalid subject: %w", err)
	}

	rawRole, _ := mapClaims["role"].(string)
	role, err := models.ParseRole(rawRole)
	if err != nil {
		return Claims{}, fmt.Errorf("invalid role claim: %w", err)
	}

	tokenID, _ := mapClaims["jti"].(string)
	if tokenID == "" {
		return Claims{}, fmt.Errorf("missing jti claim")
	}

	var expires time.Time
	if exp, ok := mapClaims["exp"].(float64); ok {
		expires = time.Unix(int64(exp), 0)
	}

	return Claims{UserID: userID, Role: role, TokenID: tokenID, Expires: expires}, nil
}
