package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/farm-calendar/pkg/httputil"
	"github.com/jwalitptl/farm-calendar/pkg/logger"
)

// ErrorHandler renders the last error a handler attached with c.Error, if the
// handler did not write a response itself.
func ErrorHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		for _, e := range c.Errors {
			log.ZL.Error().
				Err(e.Err).
				Str("request_id", c.GetString(ContextRequestID)).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Msg("Request error")
		}

		if c.Writer.Written() {
			return
		}
		httputil.RespondWithError(c, c.Errors.Last().Err)
	}
}
