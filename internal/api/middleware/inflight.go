package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MaxInflight ограничивает число одновременно обрабатываемых запросов.
// Лишние сразу получают 503 с Retry-After, а не копятся в очереди к пулу БД.
func MaxInflight(n int) gin.HandlerFunc {
	sem := make(chan struct{}, n)
	return func(c *gin.Context) {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
			c.Next()
		default:
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "сервер перегружен, повторите позже",
				"code":  "overloaded",
			})
		}
	}
}
