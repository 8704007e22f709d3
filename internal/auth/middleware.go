package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fieldwork/taskd/internal/models"
)

// Context keys under which the middleware stores the caller's identity.
const (
	ctxKeyUserID = "auth.userID"
	ctxKeyRole   = "auth.role"
	ctxKeyToken  = "auth.tokenID"
)

// UserLoader resolves a user id to its current document.
type UserLoader interface {
	GetUser(ctx context.Context, id primitive.ObjectID) (models.User, error)
}

// SessionChecker reports whether a token id has been revoked.
type SessionChecker interface {
	IsSessionRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Guard authenticates requests and enforces role checks.
type Guard struct {
	tokens   *Tokens
	users    UserLoader
	sessions SessionChecker
}

// NewGuard constructs the middleware with its collaborators.
func NewGuard(tokens *Tokens, users UserLoader, sessions SessionChecker) *Guard {
	return &Guard{tokens: tokens, users: users, sessions: sessions}
}

// Authenticate validates the Bearer token, checks the session is live and the
// user still exists and is active, then stores identity in the gin context.
func (g *Guard) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := g.tokens.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		if revoked, err := g.sessions.IsSessionRevoked(c.Request.Context(), claims.TokenID); err != nil || revoked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session revoked"})
			return
		}

		user, err := g.users.GetUser(c.Request.Context(), claims.UserID)
		if err != nil || !user.Active {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account unavailable"})
			return
		}

		c.Set(ctxKeyUserID, user.ID)
		c.Set(ctxKeyRole, user.Role)
		c.Set(ctxKeyToken, claims.TokenID)
		c.Next()
	}
}

// RequireRole allows only the listed roles past.
func (g *Guard) RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := allowed[RoleFrom(c)]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Next()
	}
}

// UserIDFrom extracts the authenticated user id from the gin context.
func UserIDFrom(c *gin.Context) primitive.ObjectID {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if id, ok := v.(primitive.ObjectID); ok {
			return id
		}
	}
	return primitive.NilObjectID
}

// RoleFrom extracts the authenticated role from the gin context.
func RoleFrom(c *gin.Context) models.Role {
	if v, ok := c.Get(ctxKeyRole); ok {
		if r, ok := v.(models.Role); ok {
			return r
		}
	}
	return ""
}

// TokenIDFrom extracts the token id, used by logout to revoke the session.
func TokenIDFrom(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyToken); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
