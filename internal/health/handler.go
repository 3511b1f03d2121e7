package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/netsblox/cloud/internal/bus"
	"github.com/netsblox/cloud/internal/logging"
	"go.uber.org/zap"
)

// StoreChecker verifies connectivity to the Project Store Gateway's backing database.
type StoreChecker interface {
	Ping(ctx context.Context) error
}

// BlobChecker verifies connectivity to the blob store backing role code/media.
type BlobChecker interface {
	Ping(ctx context.Context) error
}

// Handler manages health check endpoints for the cloud service's dependencies:
// the Mongo-backed project store, the S3-backed blob store and the optional
// Redis address-resolution cache / rate-limit store.
type Handler struct {
	redisService *bus.Service
	store        StoreChecker
	blob         BlobChecker
}

// NewHandler creates a new health check handler.
func NewHandler(redisService *bus.Service, store StoreChecker, blob BlobChecker) *Handler {
	return &Handler{
		redisService: redisService,
		store:        store,
		blob:         blob,
	}
}

// LivenessResponse represents the liveness probe response
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse represents the readiness probe response
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Liveness handles the liveness probe endpoint
// GET /health/live
// Returns 200 if the process is alive (no dependency checks)
func (h *Handler) Liveness(c *gin.Context) {
	response := LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(http.StatusOK, response)
}

// Readiness handles the readiness probe endpoint
// GET /health/ready
// Returns 200 only if all critical dependencies are healthy
// Returns 503 if any dependency is unhealthy
func (h *Handler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	redisStatus := h.checkRedis(ctx)
	checks["redis"] = redisStatus
	if redisStatus != "healthy" {
		allHealthy = false
	}

	storeStatus := h.checkDependency(ctx, "store", h.store)
	checks["store"] = storeStatus
	if storeStatus != "healthy" {
		allHealthy = false
	}

	blobStatus := h.checkDependency(ctx, "blob", h.blob)
	checks["blob"] = blobStatus
	if blobStatus != "healthy" {
		allHealthy = false
	}

	status := "ready"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadinessResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(statusCode, response)
}

// checkRedis verifies Redis connectivity using the PING command.
func (h *Handler) checkRedis(ctx context.Context) string {
	// If Redis is not enabled (single-instance mode), consider it healthy
	if h.redisService == nil {
		return "healthy"
	}

	if err := h.redisService.Ping(ctx); err != nil {
		logging.Error(ctx, "redis health check failed", zap.Error(err))
		return "unhealthy"
	}

	return "healthy"
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (h *Handler) checkDependency(ctx context.Context, name string, dep pinger) string {
	if dep == nil {
		return "healthy"
	}
	if err := dep.Ping(ctx); err != nil {
		logging.Error(ctx, name+" health check failed", zap.Error(err))
		return "unhealthy"
	}
	return "healthy"
}

// HealthCheckResponse is a generic health check response for backward compatibility
type HealthCheckResponse struct {
	Status string         `json:"status"`
	Data   map[string]any `json:"data,omitempty"`
}

// MarshalJSON implements custom JSON marshaling for better formatting
func (r ReadinessResponse) MarshalJSON() ([]byte, error) {
	type Alias ReadinessResponse
	return json.Marshal(&struct {
		*Alias
	}{
		Alias: (*Alias)(&r),
	})
}
