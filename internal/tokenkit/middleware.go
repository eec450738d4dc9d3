package tokenkit

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextUserIDKey is the gin context key carrying the verified user id.
const ContextUserIDKey = "auth_user_id"

// RequireAccessToken validates the Bearer access token and injects the
// subject user id into the request context.
func RequireAccessToken(service *Service) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		accessToken := bearerToken(contextGin.GetHeader("Authorization"))
		if accessToken == "" {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		userID, verifyErr := service.VerifyAccessToken(accessToken)
		if verifyErr != nil {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		contextGin.Set(ContextUserIDKey, userID)
		contextGin.Next()
	}
}

func bearerToken(headerValue string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(headerValue, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(headerValue, prefix))
}
