package middleware

import "github.com/gin-gonic/gin"

// HeaderProjectID carries the caller's project identifier. In production this
// would be derived from an authenticated API key; the demo deployment trusts
// the header directly.
const HeaderProjectID = "X-Project-ID"

// ProjectIdentity resolves the request's project and stores it under the
// "projectID" context key so idempotency, rate limiting, and handlers all
// agree on the same identity. An absent header leaves the key unset and
// consumers fall back to the development default.
func ProjectIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if v := c.GetHeader(HeaderProjectID); v != "" {
			c.Set("projectID", v)
		}
		c.Next()
	}
}
