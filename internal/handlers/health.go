package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Pinger is satisfied by *sql.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db    Pinger
	redis redis.Cmdable // nil when redis is not configured
	env   string
}

func NewHealthHandler(db Pinger, rdb redis.Cmdable, env string) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb, env: env}
}

type LivenessResponse struct {
	Status string `json:"status"`
	Env    string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, LivenessResponse{Status: "ok", Env: h.env})
}

// Readiness pings the database and, when configured, redis. A redis outage
// only degrades the service since bookings fall back to database locking.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string)
	status := "ok"

	dbCtx, dbCancel := context.WithTimeout(ctx, time.Second)
	err := h.db.PingContext(dbCtx)
	dbCancel()
	if err != nil {
		deps["database"] = "down"
		status = "error"
	} else {
		deps["database"] = "ok"
	}

	if h.redis != nil {
		redisCtx, redisCancel := context.WithTimeout(ctx, time.Second)
		err := h.redis.Ping(redisCtx).Err()
		redisCancel()
		if err != nil {
			deps["redis"] = "down"
			if status == "ok" {
				status = "degraded"
			}
		} else {
			deps["redis"] = "ok"
		}
	}

	httpStatus := http.StatusOK
	if status == "error" {
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, ReadinessResponse{Status: status, Env: h.env, Dependencies: deps})
}
