package middleware

import (
	"context"
	"mock_interview_backend/internal/config"
	"mock_interview_backend/internal/model"
	"mock_interview_backend/internal/util"
	"mock_interview_backend/pkg/logger"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthMiddleware 校验 Bearer 令牌。websocket 握手无法带头部时允许 ?token=
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}

		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(tokenString, cfg.JWT.Secret, cfg.JWT.Issuer)
		if err != nil {
			logger.Log.Debug("JWT rejected", zap.Error(err))
			util.Unauthorized(c)
			c.Abort()
			return
		}

		c.Set("user", claims)
		c.Next()
	}
}

type UserResolver interface {
	FindOrCreate(ctx context.Context, subject, name, email string) (*model.User, error)
	UpdateLastSeen(userID uint) error
}

// IdentityMiddleware 将令牌身份映射为本地用户，写入 userId
func IdentityMiddleware(users UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := util.GetUserFromContext(c)
		if claims == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		user, err := users.FindOrCreate(c.Request.Context(), claims.Subject, claims.DisplayName(), claims.Email)
		if err != nil {
			logger.Log.Error("Failed to resolve user", zap.String("subject", claims.Subject), zap.Error(err))
			util.Error(c, http.StatusServiceUnavailable, "identity store unavailable")
			c.Abort()
			return
		}

		c.Set("userId", user.ID)
		// 异步更新，不阻塞主流程
		go users.UpdateLastSeen(user.ID)
		c.Next()
	}
}
