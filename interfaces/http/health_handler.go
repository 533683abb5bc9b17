package http

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type IHealthHandler interface {
	Health(ctx *gin.Context)
}

type healthHandler struct {
	db    *sql.DB
	redis *redis.Client
}

func NewHealthHandler(db *sql.DB, redisClient *redis.Client) IHealthHandler {
	return &healthHandler{db: db, redis: redisClient}
}

// Health reports process liveness plus backend reachability. Degraded
// backends are reported but do not fail the check; the service keeps
// serving from whatever tiers remain.
func (h *healthHandler) Health(c *gin.Context) {
	status := gin.H{"status": "ok"}

	if h.db != nil {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			status["database"] = "unreachable"
		} else {
			status["database"] = "ok"
		}
	}
	if h.redis != nil {
		if err := h.redis.Ping(c.Request.Context()).Err(); err != nil {
			status["redis"] = "unreachable"
		} else {
			status["redis"] = "ok"
		}
	}

	c.JSON(http.StatusOK, status)
}
