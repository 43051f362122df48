package routes

import (
	ginlog "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"

	"drivelink/internal/controllers"
)

// SetupRouter builds the gin engine and registers all route groups.
func SetupRouter(deps *controllers.Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ginlog.SetLogger())

	TripRoutes(r, deps)
	RelayRoutes(r, deps)
	TelemetryRoutes(r, deps)

	return r
}
