package core

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kiosk404/hivelink/pkg/errorx"
	"github.com/kiosk404/hivelink/pkg/logger"
)

// ErrResponse is the body written for every failed request.
type ErrResponse struct {
	// Code is the registered business code.
	Code int `json:"code"`

	// Message is the user-facing message of the registered code.
	Message string `json:"message"`

	// Detail carries the wrapped error chain for debugging.
	Detail string `json:"detail,omitempty"`

	// Reference points at documentation for the code, if any.
	Reference string `json:"reference,omitempty"`
}

// WriteResponse writes err as an ErrResponse using its registered status,
// or data as JSON with 200 when err is nil.
func WriteResponse(c *gin.Context, err error, data interface{}) {
	if err != nil {
		coder := errorx.ParseCoder(err)
		logger.Warn("[HTTP] %s %s failed (code=%d): %v", c.Request.Method, c.Request.URL.Path, coder.Code(), err)
		c.JSON(coder.HTTPStatus(), ErrResponse{
			Code:      coder.Code(),
			Message:   coder.String(),
			Detail:    err.Error(),
			Reference: coder.Reference(),
		})
		return
	}

	c.JSON(http.StatusOK, data)
}

// WriteAccepted writes data with 202 for requests whose work continues in the background.
func WriteAccepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, data)
}
