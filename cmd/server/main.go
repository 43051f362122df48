package main

import (
	"log"
	"net/http"

	"drivelink/internal/config"
	"drivelink/internal/controllers"
	"drivelink/internal/feed"
	"drivelink/internal/jobs"
	"drivelink/internal/logger"
	"drivelink/internal/middleware"
	"drivelink/internal/routes"
	"drivelink/internal/store"
	"drivelink/internal/trip"
)

func main() {
	// Initialize structured logging to file
	logger.Setup()

	// Connect to the database
	config.InitDB()

	tripStore := store.NewTripStore(config.DB)
	hub := feed.NewHub()
	manager := trip.NewManager(hub, tripStore)

	deps := &controllers.Deps{
		Store:   tripStore,
		Manager: manager,
		Hub:     hub,
		Tuning:  config.TripTuning(),
	}

	// Background jobs: 1 Hz stats tick and silent-device cleanup
	ticker := jobs.NewStatsTicker(manager, hub)
	ticker.Start()
	defer ticker.Stop()

	reaper := jobs.NewDeviceReaper(hub, config.DeviceTTL())
	reaper.Start()
	defer reaper.Stop()

	// Setup Gin router
	r := routes.SetupRouter(deps)

	// Wrap with CORS
	handler := middleware.EnableCORS(r)

	addr := config.ListenAddr()
	log.Printf("🚀 Server running at %s", addr)
	log.Fatal(http.ListenAndServe(addr, handler))
}
