package errors

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RecoveryMiddleware converts panics in handlers into a 500 JSON response.
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("path", c.Request.URL.Path).
					Str("stack", string(debug.Stack())).
					Msgf("panic recovered: %v", r)
				err := New(CodeInternal, http.StatusInternalServerError, nil, "internal server error: %v", r)
				c.AbortWithStatusJSON(err.HTTPCode, err)
			}
		}()
		c.Next()
	}
}

// ErrorHandlerMiddleware renders the last error attached with c.Error.
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := Wrap(c.Errors.Last().Err)
		status := err.HTTPCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg(fmt.Sprintf("request failed with %d", status))
		c.JSON(status, err)
	}
}
