// Package handle implements the HTTP handlers. Handlers parse the request,
// call the services found in the request context and map errors with
// service.Classify.
package handle

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/sharevault/pkg/context"
	"github.com/yeisme/sharevault/pkg/internal/service"
	"github.com/yeisme/sharevault/pkg/log"
	"github.com/yeisme/sharevault/pkg/middleware"
	"github.com/yeisme/sharevault/pkg/queue"
	"github.com/yeisme/sharevault/pkg/rule"
)

// PasswordHeader carries a share password on /d and /s.
const PasswordHeader = "X-Share-Password"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Reason string            `json:"reason,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func services(c *gin.Context) *service.Services {
	return service.FromContext(c.Request.Context())
}

// currentUser answers 401 and returns false for anonymous requests.
func currentUser(c *gin.Context) (string, bool) {
	id, ok := middleware.GetIdentity(c)
	if !ok || id.UserID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return "", false
	}

	return id.UserID, true
}

// bindJSON decodes and validates the body, answering 400 on failure.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		resp := ErrorResponse{Error: "invalid request"}
		if fields := rule.Errors(err); fields != nil {
			resp.Fields = fields
		} else {
			resp.Error = "invalid request: " + err.Error()
		}

		log.Logger().Debug().Err(err).Str("route", c.FullPath()).Msg("invalid request")
		c.AbortWithStatusJSON(http.StatusBadRequest, resp)

		return false
	}

	return true
}

// bindOptionalJSON is bindJSON for bodies that may be empty.
func bindOptionalJSON(c *gin.Context, req any) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}

	return bindJSON(c, req)
}

// renderError logs server-side failures in full and answers with the
// client-safe message.
func renderError(c *gin.Context, err error, msg string) {
	status, public := service.Classify(err)

	logger := context.WithTraceContext(c.Request.Context(), *log.Logger())
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("route", c.FullPath()).Msg(msg)
	} else {
		logger.Debug().Err(err).Int("status", status).Str("route", c.FullPath()).Msg(msg)
	}

	resp := ErrorResponse{Error: public}

	var denied *service.AccessDeniedError
	if errors.As(err, &denied) {
		resp.Reason = string(denied.Reason)
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, resp)
}

func requester(c *gin.Context) queue.Requester {
	return queue.Requester{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referrer:  c.Request.Referer(),
	}
}

// sharePassword reads the password from the header, falling back to the query.
func sharePassword(c *gin.Context) string {
	if pw := c.GetHeader(PasswordHeader); pw != "" {
		return pw
	}

	return c.Query("password")
}
