package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/clarahq/clara-backend/internal/model/response/wrapper"
	service "github.com/clarahq/clara-backend/internal/service/extension_user"
	"github.com/clarahq/clara-backend/internal/service/redis"
	"github.com/clarahq/clara-backend/pkg/utils"
	"github.com/gin-gonic/gin"
)

func AuthenticationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := c.Cookie("token")
		if err != nil {
			c.JSON(http.StatusUnauthorized, wrapper.ErrorWrapper{Message: "Missing authentication token", Success: false})
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(tokenString)
		if err != nil {
			fmt.Println("Error validating token", err)
			c.JSON(http.StatusUnauthorized, wrapper.ErrorWrapper{Message: "Invalid authentication token", Success: false})
			c.Abort()
			return
		}

		c.Set("user_id", claims["user_id"])
		c.Next()
	}
}

// SwaggerHostMiddleware restricts the swagger UI to the configured host.
func SwaggerHostMiddleware(allowedHost string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if allowedHost != "" && strings.HasPrefix(c.Request.URL.Path, "/swagger") {
			if !strings.HasPrefix(c.Request.Host, allowedHost) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error": "Access denied",
				})
				return
			}
		}
		c.Next()
	}
}

// APIKeyMiddleware authenticates extension requests by X-API-Key.
func APIKeyMiddleware(extensionUserService service.ExtensionUserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-Key")

		if apiKey == "" {
			c.JSON(http.StatusUnauthorized, wrapper.ErrorWrapper{
				Message: "X-API-Key header is required",
				Success: false,
			})
			c.Abort()
			return
		}

		user, err := extensionUserService.ValidateAPIKey(c.Request.Context(), apiKey)
		if err != nil {
			c.JSON(http.StatusUnauthorized, wrapper.ErrorWrapper{
				Message: "Invalid or inactive API key",
				Success: false,
			})
			c.Abort()
			return
		}

		c.Set("extension_user", user)
		c.Set("extension_user_id", user.ID.String())
		c.Set("extension_username", user.Username)

		c.Next()
	}
}

// RateLimitMiddleware caps requests per user on hot endpoints (event
// batches arrive with every heartbeat). No-op when redis is unavailable.
func RateLimitMiddleware(redisService redis.ServiceInterface, name string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisService == nil {
			c.Next()
			return
		}

		userID := c.GetString("extension_user_id")
		if userID == "" {
			userID = c.ClientIP()
		}

		key := fmt.Sprintf("ratelimit:%s:%s", name, userID)
		allowed, err := redisService.CheckRateLimit(c.Request.Context(), key, limit, window)
		if err != nil {
			c.Next()
			return
		}
		if !allowed {
			c.JSON(http.StatusTooManyRequests, wrapper.ErrorWrapper{
				Message: "Rate limit exceeded",
				Success: false,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
