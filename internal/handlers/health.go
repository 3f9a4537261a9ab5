package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/fleetdeck-io/fleetdeck/internal/frames"
	"github.com/fleetdeck-io/fleetdeck/pkg/response"
)

// Health reports process liveness, database reachability, and frame
// store occupancy.
func Health(db *gorm.DB, store *frames.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload := gin.H{"status": "ok"}

		dbStatus := "ok"
		if db != nil {
			sqlDB, err := db.DB()
			if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
				dbStatus = "unreachable"
				payload["status"] = "degraded"
			}
		}
		payload["database"] = dbStatus

		if store != nil {
			stats := store.Stats()
			payload["frames"] = gin.H{
				"total_frames": stats.TotalFrames,
				"total_bytes":  stats.TotalBytes,
			}
		}

		status := http.StatusOK
		if payload["status"] == "degraded" {
			status = http.StatusServiceUnavailable
		}
		response.Success(c, status, payload)
	}
}
