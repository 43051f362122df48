package routes

import (
	"github.com/gin-gonic/gin"

	"drivelink/internal/controllers"
)

// Socket endpoints authenticate with a token query parameter, not the
// Authorization header, since browsers cannot set headers on WS handshakes.
func TelemetryRoutes(r *gin.Engine, deps *controllers.Deps) {
	tc := controllers.NewTelemetryController(deps)

	ws := r.Group("/ws")
	{
		ws.GET("/telemetry", tc.HandleDeviceWS)
		ws.GET("/watch", tc.HandleWatchWS)
	}
}
