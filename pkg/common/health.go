package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthResponse represents health check response
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// HealthCheck returns a liveness handler
func HealthCheck(serviceName, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthResponse{
			Status:  "healthy",
			Service: serviceName,
			Version: version,
		})
	}
}

// HealthCheckWithDeps returns a readiness handler. Dependencies listed in
// optional only degrade the status; any other failure makes it unhealthy.
func HealthCheckWithDeps(serviceName, version string, checks map[string]func() error, optional ...string) gin.HandlerFunc {
	soft := make(map[string]bool, len(optional))
	for _, name := range optional {
		soft[name] = true
	}

	return func(c *gin.Context) {
		status := "healthy"
		checkResults := make(map[string]string, len(checks))

		for name, checkFunc := range checks {
			err := checkFunc()
			switch {
			case err == nil:
				checkResults[name] = "healthy"
			case soft[name]:
				checkResults[name] = "degraded: " + err.Error()
				if status == "healthy" {
					status = "degraded"
				}
			default:
				checkResults[name] = "unhealthy: " + err.Error()
				status = "unhealthy"
			}
		}

		statusCode := http.StatusOK
		if status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, HealthResponse{
			Status:  status,
			Service: serviceName,
			Version: version,
			Checks:  checkResults,
		})
	}
}
