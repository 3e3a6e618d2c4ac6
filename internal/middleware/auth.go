package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"minuteride/internal/domain"
)

const actorContextKey = "actor"

// ErrUnauthorized is the body message for missing or invalid credentials.
var ErrUnauthorized = errors.New("unauthorized")

// Auth validates an HS256 bearer token and stores the caller as a domain.Actor.
// Browsers cannot set headers on WebSocket upgrades, so the token is also
// accepted from the access_token query parameter.
func Auth(secret string) gin.HandlerFunc {
	key := []byte(secret)

	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrUnauthorized.Error()})
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return key, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrUnauthorized.Error()})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrUnauthorized.Error()})
			return
		}

		actor, ok := actorFromClaims(claims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrUnauthorized.Error()})
			return
		}

		c.Set(actorContextKey, actor)
		c.Next()
	}
}

// RequireRole rejects callers without the given role. Must run after Auth.
func RequireRole(role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrUnauthorized.Error()})
			return
		}
		if actor.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// ActorFromContext returns the authenticated caller.
func ActorFromContext(c *gin.Context) (domain.Actor, bool) {
	v, ok := c.Get(actorContextKey)
	if !ok {
		return domain.Actor{}, false
	}
	actor, ok := v.(domain.Actor)
	return actor, ok
}

// SetActor stores an actor on the request. Used by tests and trusted internal routes.
func SetActor(c *gin.Context, actor domain.Actor) {
	c.Set(actorContextKey, actor)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return ""
		}
		return strings.TrimSpace(parts[1])
	}
	return c.Query("access_token")
}

// actorFromClaims reads the subject from sub (or user_id) and the role claim.
func actorFromClaims(claims jwt.MapClaims) (domain.Actor, bool) {
	id, _ := claims["sub"].(string)
	if id == "" {
		id, _ = claims["user_id"].(string)
	}
	role, _ := claims["role"].(string)

	if id == "" {
		return domain.Actor{}, false
	}
	switch domain.Role(role) {
	case domain.RoleDispatcher, domain.RoleDriver:
	default:
		return domain.Actor{}, false
	}

	return domain.Actor{ID: id, Role: domain.Role(role)}, true
}
