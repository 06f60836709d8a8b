package handlers

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/semroute/pkg/encoder"
)

// Build information - can be set at build time using ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

const serviceName = "semroute"

// HealthHandler handles health check requests
type HealthHandler struct {
	encoder encoder.Encoder
	started time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(enc encoder.Encoder) *HealthHandler {
	return &HealthHandler{
		encoder: enc,
		started: time.Now(),
	}
}

// HealthCheck handles GET /health - basic liveness check
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
	})
}

// LivenessCheck handles GET /live - Kubernetes liveness probe endpoint
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadinessCheck handles GET /ready
// Ready means an encoder is configured and can serve Encode right now.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	check := h.encoderCheck()
	response := gin.H{
		"status":    "ready",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks": gin.H{
			"encoder": check,
			"system": gin.H{
				"status": "healthy",
				"uptime": time.Since(h.started).Round(time.Second).String(),
			},
		},
	}

	if check["status"] != "healthy" {
		response["status"] = "not_ready"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}

// DetailedHealthCheck handles GET /health/detailed - comprehensive health information
func (h *HealthHandler) DetailedHealthCheck(c *gin.Context) {
	startTime := time.Now()

	check := h.encoderCheck()
	systemMetrics := h.getSystemMetrics()
	response := gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": Version,
		"build_info": gin.H{
			"git_commit": GitCommit,
			"build_time": BuildTime,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"environment": gin.H{
			"go_version": GoVersion,
		},
		"checks": gin.H{
			"encoder": check,
			"system": gin.H{
				"status":       "healthy",
				"memory_usage": systemMetrics.MemoryUsage,
				"goroutines":   systemMetrics.Goroutines,
				"gc_cycles":    systemMetrics.GCCycles,
				"heap_objects": systemMetrics.HeapObjects,
				"stack_usage":  systemMetrics.StackUsage,
			},
		},
		"metrics": gin.H{
			"response_time_ms": time.Since(startTime).Milliseconds(),
		},
	}

	if check["status"] != "healthy" {
		response["status"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}

// encoderCheck reports whether the encoder can serve requests.
func (h *HealthHandler) encoderCheck() gin.H {
	if h.encoder == nil {
		return gin.H{"status": "unhealthy", "error": "encoder not configured"}
	}

	check := gin.H{"status": "healthy", "name": h.encoder.Name()}
	if d, ok := h.encoder.(dimensioned); ok {
		check["dimensions"] = d.Dimensions()
	}

	switch e := h.encoder.(type) {
	case interface{ Fitted() bool }:
		if !e.Fitted() {
			check["status"] = "unhealthy"
			check["error"] = "encoder is not fitted"
		}
	case interface{ Client() encoder.EmbeddingsAPI }:
		if e.Client() == nil {
			check["status"] = "unhealthy"
			check["error"] = "encoder client is not initialized"
		}
	}
	return check
}

// SystemMetrics holds system runtime metrics
type SystemMetrics struct {
	MemoryUsage string `json:"memory_usage"`
	Goroutines  int    `json:"goroutines"`
	GCCycles    uint32 `json:"gc_cycles"`
	HeapObjects uint64 `json:"heap_objects"`
	StackUsage  string `json:"stack_usage"`
}

// getSystemMetrics collects current system runtime metrics
func (h *HealthHandler) getSystemMetrics() SystemMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	// Convert bytes to human-readable format
	memoryUsage := fmt.Sprintf("%.2f MB", float64(m.Alloc)/(1024*1024))
	stackUsage := fmt.Sprintf("%.2f MB", float64(m.StackSys)/(1024*1024))

	return SystemMetrics{
		MemoryUsage: memoryUsage,
		Goroutines:  runtime.NumGoroutine(),
		GCCycles:    m.NumGC,
		HeapObjects: m.HeapObjects,
		StackUsage:  stackUsage,
	}
}
