package gateway

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avamcp/internal/auth"
	"github.com/vyrodovalexey/avamcp/internal/util"
)

// Codes for failures outside the request-path error taxonomy.
const (
	CodeMethodNotAllowed = "method_not_allowed"
	CodeBodyTooLarge     = "request_too_large"
	CodeInvalidRequest   = "invalid_request"
)

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Error         ErrorDetail `json:"error"`
	CorrelationID string      `json:"correlation_id"`
}

// ErrorDetail carries the stable code and sanitized message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError renders err by kind. The cause is never exposed.
func writeError(c *gin.Context, err error, correlationID string) {
	kind := util.KindOf(err)
	status := kind.HTTPStatus()

	switch status {
	case http.StatusUnauthorized:
		c.Header(auth.HeaderWWWAuthenticate, "Bearer")
	case http.StatusTooManyRequests:
		c.Header("Retry-After", retryAfterSeconds(util.RetryAfterOf(err)))
	}
	writeStatus(c, status, kind.String(), kind.PublicMessage(), correlationID)
}

func writeStatus(c *gin.Context, status int, code, message, correlationID string) {
	c.AbortWithStatusJSON(status, ErrorBody{
		Error:         ErrorDetail{Code: code, Message: message},
		CorrelationID: correlationID,
	})
}

// retryAfterSeconds rounds d up to whole seconds, at least one.
func retryAfterSeconds(d time.Duration) string {
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
