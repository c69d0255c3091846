package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bakery_ops_backend/internal/models"
	"bakery_ops_backend/pkg/utils"
)

// Context keys set by AuthMiddleware.
const (
	ActorKey    = "actor"
	UserIDKey   = "userID"
	BakeryIDKey = "bakeryID"
	UserRoleKey = "userRole"
)

// bearerToken extracts the token from the Authorization header. Browsers
// cannot set headers on a websocket handshake, so upgrade requests may pass
// it as ?access_token= instead.
func bearerToken(c *gin.Context) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
			if token := c.Query("access_token"); token != "" {
				return token, ""
			}
		}
		return "", "Authorization header required"
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", "Invalid authorization header format. Use Bearer <token>"
	}
	return parts[1], ""
}

// AuthMiddleware creates a Gin middleware for JWT authentication.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, problem := bearerToken(c)
		if problem != "" {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, problem, ""))
			return
		}

		claims, err := utils.ValidateToken(tokenString)
		if err != nil {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid or expired token", err.Error()))
			return
		}
		if claims.BakeryID == "" && !claims.IsPlatformAdmin {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden, "Token is not bound to a bakery", ""))
			return
		}

		actor := models.Actor{
			UserID:          claims.UserID,
			BakeryID:        claims.BakeryID,
			IsPlatformAdmin: claims.IsPlatformAdmin,
			Role:            claims.Role,
		}
		c.Set(ActorKey, actor)
		c.Set(UserIDKey, actor.UserID)
		c.Set(BakeryIDKey, actor.BakeryID)
		c.Set(UserRoleKey, actor.Role)

		c.Next()
	}
}

// ActorFrom returns the actor stored by AuthMiddleware.
func ActorFrom(c *gin.Context) (models.Actor, bool) {
	v, ok := c.Get(ActorKey)
	if !ok {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}

// PlatformAdminMiddleware only lets platform administrators through.
func PlatformAdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok || !actor.IsPlatformAdmin {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden, "Platform administrator access required", ""))
			return
		}
		c.Next()
	}
}
