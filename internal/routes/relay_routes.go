package routes

import (
	"github.com/gin-gonic/gin"

	"drivelink/internal/controllers"
	"drivelink/internal/middleware"
)

func RelayRoutes(r *gin.Engine, deps *controllers.Deps) {
	rc := controllers.NewRelayController(deps)

	relays := r.Group("/relays")
	relays.Use(middleware.RequireAuth())
	{
		relays.GET("", rc.ListRelays)
		relays.POST("/:name", rc.SetRelay)
	}
}
