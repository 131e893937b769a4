// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file guards the internal worker-callback routes. Workers report
// JOINED_MEETING / LEFT_MEETING back to the control plane; they carry no
// project identity, so the callback authenticates with a static shared
// token provisioned into the worker environment.
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderWorkerToken is the header workers present on callback requests.
const HeaderWorkerToken = "X-Worker-Token"

// WorkerAuth returns a Gin middleware admitting only requests whose
// X-Worker-Token matches the configured token. An empty configured token
// disables the route entirely (404) rather than leaving it open: a
// deployment without the token set must not accept unauthenticated state
// transitions.
func WorkerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"code":    "not_found",
				"message": "route not found",
			})
			return
		}
		got := c.GetHeader(HeaderWorkerToken)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "unauthorized",
				"message": "invalid worker token",
			})
			return
		}
		c.Next()
	}
}
