package routes

import (
	"github.com/gin-gonic/gin"

	"drivelink/internal/controllers"
	"drivelink/internal/middleware"
)

func TripRoutes(r *gin.Engine, deps *controllers.Deps) {
	tc := controllers.NewTripController(deps)

	trips := r.Group("/trips")
	trips.Use(middleware.RequireAuth())
	{
		trips.POST("/start", tc.StartTrip)
		trips.POST("/end", tc.EndTrip)
		trips.POST("/save", tc.SaveTrip)
		trips.POST("/discard", tc.DiscardTrip)
		trips.GET("/active", tc.ActiveStats)
		trips.GET("", tc.ListTrips)
		trips.GET("/:id", tc.GetTrip)
		trips.DELETE("/:id", tc.DeleteTrip)
	}

	stats := r.Group("/stats")
	stats.Use(middleware.RequireAuth())
	{
		stats.GET("/health", tc.HealthStats)
	}

	telemetry := r.Group("/telemetry")
	telemetry.Use(middleware.RequireAuth())
	{
		telemetry.GET("/live", tc.LiveTelemetry)
	}
}
