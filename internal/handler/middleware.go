package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/model"
	"github.com/vidtube/backend/internal/service"
)

const (
	authUserKey = "auth_user"

	accessCookieName  = "accessToken"
	refreshCookieName = "refreshToken"
)

// AuthMiddleware is the session guard. The access token is read from the
// accessToken cookie first, then from the Authorization header; a request
// carrying neither is a plain 401. The resolved identity carries no
// password hash or refresh token.
func AuthMiddleware(tokens *service.TokenService, store service.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		token := extractAccessToken(c)
		if token == "" {
			abortUnauthorized(c, "unauthorized request")
			return
		}

		userID, err := tokens.VerifyAccessToken(token)
		if err != nil {
			abortUnauthorized(c, err.Error())
			return
		}

		user, err := store.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			if db.IsNotFound(err) {
				abortUnauthorized(c, "invalid access token")
				return
			}
			c.JSON(http.StatusInternalServerError, model.ErrorResponse{Message: "something went wrong"})
			c.Abort()
			return
		}

		c.Set(authUserKey, model.NewAuthUser(user))
		c.Next()
	}
}

func extractAccessToken(c *gin.Context) string {
	if cookie, err := c.Cookie(accessCookieName); err == nil && cookie != "" {
		return cookie
	}

	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

func abortUnauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, model.ErrorResponse{Message: message})
	c.Abort()
}

// GetAuthUser returns the identity attached by AuthMiddleware, or nil.
func GetAuthUser(c *gin.Context) *model.AuthUser {
	if value, ok := c.Get(authUserKey); ok {
		if user, ok := value.(*model.AuthUser); ok {
			return user
		}
	}
	return nil
}

func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	originMap := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		originMap[trimmed] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := originMap[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Allow-Credentials", "true")
				c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
				c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
