package routes

import (
	"github.com/MarceloDuretti/Financeiro-sub001/internal/auth"
	"github.com/MarceloDuretti/Financeiro-sub001/internal/handlers"
	"github.com/MarceloDuretti/Financeiro-sub001/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Deps are the collaborators the router wires together.
type Deps struct {
	Handler        *handlers.Handler
	Tokens         *auth.TokenService
	Tenants        middleware.TenantResolver
	Logger         *zap.Logger
	AllowedOrigins []string
}

func SetupRoutes(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ginRouter := gin.New()
	ginRouter.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.CORS(d.AllowedOrigins))

	// Health check endpoint
	ginRouter.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "Financeiro API is running",
		})
	})

	h := d.Handler

	// Public routes (no authentication required)
	api := ginRouter.Group("/api")
	{
		api.POST("/register", h.Register)
		api.POST("/login", h.Login)
		api.POST("/logout", h.Logout)
	}

	// Protected routes (authentication required)
	protectedRoutes := api.Group("")
	protectedRoutes.Use(middleware.SessionAuth(d.Tokens, d.Tenants))
	{
		protectedRoutes.GET("/me", h.Me)
		protectedRoutes.GET("/users", h.GetUsers)
		protectedRoutes.POST("/collaborators", h.CreateCollaborator)

		protectedRoutes.GET("/cost-centers", h.GetCostCenters)
		protectedRoutes.GET("/cost-centers/:id", h.GetCostCenterByID)
		protectedRoutes.POST("/cost-centers", h.CreateCostCenter)
		protectedRoutes.PUT("/cost-centers/:id", h.UpdateCostCenter)
		protectedRoutes.DELETE("/cost-centers/:id", h.DeleteCostCenter)
	}

	return ginRouter
}
