package api

import (
	"github.com/gin-gonic/gin"

	"github.com/coinsora/server/internal/handlers"
)

func registerAuthRoutes(api *gin.RouterGroup, authHandler *handlers.AuthHandler) {
	auth := api.Group("/auth")
	{
		auth.POST("/signup", authHandler.Signup)
		auth.POST("/verify-otp", authHandler.VerifyOTP)
		auth.POST("/login", authHandler.Login)
		auth.POST("/send-login-otp", authHandler.SendLoginOTP)
		auth.POST("/verify-login-otp", authHandler.VerifyLoginOTP)
	}
}
