package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, handler gin.HandlerFunc) (int, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	handler(c)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestResponses(t *testing.T) {
	code, body := serve(t, func(c *gin.Context) { SuccessResponse(c, gin.H{"id": "o-1"}) })
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, body["success"].(bool))
	assert.Equal(t, "o-1", body["data"].(map[string]interface{})["id"])

	code, body = serve(t, func(c *gin.Context) { ErrorResponse(c, http.StatusNotFound, "assessment not found") })
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, body["success"].(bool))
	errInfo := body["error"].(map[string]interface{})
	assert.Equal(t, float64(404), errInfo["code"])
	assert.Equal(t, "assessment not found", errInfo["message"])

	code, body = serve(t, func(c *gin.Context) {
		SuccessResponseWithMeta(c, []string{"a"}, &Meta{Limit: 10, Total: 1})
	})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["meta"].(map[string]interface{})["total"])
}

func TestAppErrorResponse(t *testing.T) {
	cause := errors.New("boom")
	appErr := NewValidationError(map[string]string{"order.id": "order.id is required"}, cause)
	assert.ErrorIs(t, appErr, cause)
	assert.Equal(t, "validation failed: boom", appErr.Error())

	code, body := serve(t, func(c *gin.Context) { AppErrorResponse(c, appErr) })
	assert.Equal(t, http.StatusBadRequest, code)
	details := body["error"].(map[string]interface{})["details"].(map[string]interface{})
	assert.Equal(t, "order.id is required", details["order.id"])
}

func TestHealthCheckWithDeps(t *testing.T) {
	ok := func() error { return nil }
	down := func() error { return errors.New("connection refused") }

	code, body := serve(t, HealthCheckWithDeps("order-risk", "1.0.0", map[string]func() error{
		"postgres": ok,
		"nats":     down,
	}, "nats"))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "degraded", body["status"])

	code, body = serve(t, HealthCheckWithDeps("order-risk", "1.0.0", map[string]func() error{
		"postgres": down,
		"nats":     down,
	}, "nats"))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body["status"])
}
