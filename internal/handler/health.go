package handler

import (
	"context"
	"net/http"
	"time"

	"catalogsync/internal/infra"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Pinger checks that the upstream ERP answers. *erp.Client implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerReporter exposes the sync circuit breaker.
type BreakerReporter interface {
	BreakerState() infra.CBSnapshot
	Running() bool
}

// Health returns a JSON health check response. Storage failures make it 503;
// an unreachable upstream is reported but does not, since the catalog and
// quotes keep working from local data.
func Health(db *gorm.DB, rdb *redis.Client, upstream Pinger, syncer BreakerReporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "disabled"
		if rdb != nil {
			redisStatus = "connected"
			if rdb.Ping(ctx).Err() != nil {
				redisStatus = "error"
			}
		}

		upstreamStatus := "not_configured"
		if upstream != nil {
			upstreamStatus = "reachable"
			if upstream.Ping(ctx) != nil {
				upstreamStatus = "unreachable"
			}
		}

		status := http.StatusOK
		if dbStatus == "error" || redisStatus == "error" {
			status = http.StatusServiceUnavailable
		}

		body := gin.H{
			"ok":       status == http.StatusOK,
			"db":       dbStatus,
			"redis":    redisStatus,
			"upstream": upstreamStatus,
		}
		if syncer != nil {
			body["sync_running"] = syncer.Running()
			body["circuit_breaker"] = syncer.BreakerState()
		}
		c.JSON(status, body)
	}
}
