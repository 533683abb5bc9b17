package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"insight-hub/domain/repository"
	httpHandler "insight-hub/interfaces/http"
	"insight-hub/interfaces/middleware"
)

func InitiateRouter(
	analyticsHandler httpHandler.IAnalyticsHandler,
	oauthHandler httpHandler.IOAuthHandler,
	healthHandler httpHandler.IHealthHandler,
	userRepository repository.IUser,
	secretKey string,
	allowedOrigins []string,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:4200", "http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", healthHandler.Health)

	// The provider redirects here without our bearer token; the state entry
	// carries the initiating user.
	router.GET("/auth/callback", oauthHandler.Callback)

	api := router.Group("api")
	api.Use(middleware.Auth(userRepository, secretKey))

	api.GET("/companies/:companyId/analytics", analyticsHandler.GetCompanyAnalytics)
	api.GET("/companies/:companyId/sync-status", analyticsHandler.GetSyncStatus)

	api.GET("/oauth/status", oauthHandler.Status)
	api.GET("/oauth/:platform/url", oauthHandler.GetAuthURL)
	api.POST("/oauth/:platform/link-identity", oauthHandler.LinkIdentity)
	api.DELETE("/oauth/:platform", oauthHandler.Disconnect)

	return router
}
