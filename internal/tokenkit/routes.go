package tokenkit

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// MountUserRoutes registers the user-facing token lifecycle endpoints:
// register, login, pair refresh, logout, logout-all, and profile lookup.
func MountUserRoutes(router gin.IRouter, service *Service, users UserRegistry, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	router.POST("/users/register", func(contextGin *gin.Context) {
		var inbound registerRequest
		if err := contextGin.BindJSON(&inbound); err != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		if strings.TrimSpace(inbound.Email) == "" || strings.TrimSpace(inbound.Username) == "" || inbound.Password == "" {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing_fields"})
			return
		}

		userID, registerErr := users.Register(contextGin, inbound.Email, inbound.Username, inbound.Password)
		switch {
		case errors.Is(registerErr, ErrEmailTaken):
			contextGin.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "email_taken"})
			return
		case errors.Is(registerErr, ErrUsernameTaken):
			contextGin.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "username_taken"})
			return
		case registerErr != nil:
			logger.Error("registration failed",
				zap.String("code", "users.register.failure"),
				zap.Error(registerErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		respondWithPair(contextGin, service, userID, logger)
	})

	router.POST("/users/login", func(contextGin *gin.Context) {
		var inbound loginRequest
		if err := contextGin.BindJSON(&inbound); err != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}

		userID, authErr := users.Authenticate(contextGin, inbound.Username, inbound.Password)
		if authErr != nil {
			if errors.Is(authErr, ErrInvalidCredentials) {
				contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
				return
			}
			logger.Error("credential check failed",
				zap.String("code", "users.login.failure"),
				zap.Error(authErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		respondWithPair(contextGin, service, userID, logger)
	})

	router.POST("/users/updateJwtPair", func(contextGin *gin.Context) {
		var inbound TokenPair
		if err := contextGin.BindJSON(&inbound); err != nil || inbound.AccessToken == "" || inbound.RefreshToken == "" {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}

		rotated, rotateErr := service.Rotate(contextGin, inbound)
		if rotateErr != nil {
			if errors.Is(rotateErr, ErrStoreUnavailable) {
				contextGin.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "store_unavailable"})
				return
			}
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "reauthenticate_required"})
			return
		}
		contextGin.JSON(http.StatusOK, rotated)
	})

	router.POST("/users/logout", func(contextGin *gin.Context) {
		var inbound TokenPair
		if err := contextGin.BindJSON(&inbound); err != nil || inbound.AccessToken == "" || inbound.RefreshToken == "" {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}

		// Expired access tokens still log out; only structurally invalid or
		// forged tokens are rejected.
		userID, attributeErr := service.AttributeAccessToken(inbound.AccessToken)
		if attributeErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "reauthenticate_required"})
			return
		}
		if revokeErr := service.RevokeOne(contextGin, userID, inbound.RefreshToken); revokeErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "store_unavailable"})
			return
		}
		contextGin.Status(http.StatusNoContent)
	})

	authenticated := router.Group("")
	authenticated.Use(RequireAccessToken(service))

	authenticated.POST("/users/logoutFromAllDevices", func(contextGin *gin.Context) {
		userID := contextGin.GetString(ContextUserIDKey)
		if userID == "" {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		if revokeErr := service.RevokeAll(contextGin, userID); revokeErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "store_unavailable"})
			return
		}
		contextGin.Status(http.StatusNoContent)
	})

	authenticated.GET("/users/me", func(contextGin *gin.Context) {
		userID := contextGin.GetString(ContextUserIDKey)
		if userID == "" {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		profile, profileErr := users.GetProfile(contextGin, userID)
		if profileErr != nil {
			if errors.Is(profileErr, ErrUserNotFound) {
				contextGin.AbortWithStatus(http.StatusUnauthorized)
				return
			}
			logger.Error("profile lookup failed",
				zap.String("code", "users.me.failure"),
				zap.String("user_id", userID),
				zap.Error(profileErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		contextGin.JSON(http.StatusOK, profile)
	})
}

func respondWithPair(contextGin *gin.Context, service *Service, userID string, logger *zap.Logger) {
	pair, issueErr := service.Issue(contextGin, userID)
	if issueErr != nil {
		if errors.Is(issueErr, ErrStoreUnavailable) {
			contextGin.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "store_unavailable"})
			return
		}
		logger.Error("token pair issuance failed",
			zap.String("code", "users.issue.failure"),
			zap.String("user_id", userID),
			zap.Error(issueErr))
		contextGin.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	contextGin.JSON(http.StatusOK, pair)
}
