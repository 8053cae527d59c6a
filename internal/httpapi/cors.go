package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// corsMiddleware applies the origin allow-list to the lead endpoint.
// Unknown origins get no CORS headers at all; the browser blocks them.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	allowList := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		origin = strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
		if origin != "" {
			allowList[origin] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		origin := strings.TrimSpace(c.GetHeader("Origin"))
		if origin != "" {
			if _, ok := allowList[strings.ToLower(strings.TrimRight(origin, "/"))]; ok {
				h := c.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, "+leadSecretHeader)
				h.Set("Access-Control-Max-Age", "86400")
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
