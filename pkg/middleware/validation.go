package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/order-risk/pkg/common"
	"github.com/richxcame/order-risk/pkg/validation"
)

var requestValidator = validation.New()

// BindJSON decodes the request body into req and validates its `validate`
// tags. On failure the error response is already written and false is
// returned.
func BindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.ErrorResponse(c, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		common.AppErrorResponse(c, common.NewBadRequestError("invalid request body", err))
		return false
	}

	if err := validation.Struct(requestValidator, req); err != nil {
		var verr *validation.ValidationError
		if errors.As(err, &verr) {
			common.AppErrorResponse(c, common.NewValidationError(verr.Errors, err))
			return false
		}
		common.ErrorResponse(c, http.StatusBadRequest, "validation failed")
		return false
	}
	return true
}

// MaxBodySize limits the request body size
func MaxBodySize(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		}
		c.Next()
	}
}
