package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/retro-wallet/internal/common"
)

const playerIDKey = "player_id"

// maxPlayerIDLen совпадает с длиной колонки accounts.player_id.
const maxPlayerIDLen = 128

// RequirePlayer берёт player_id из заголовка, который ставит auth-шлюз.
// Содержимое не сверяется с базой: шлюзу мы доверяем. Отсекаются только
// пустые, слишком длинные и нетекстовые значения.
func RequirePlayer(header string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := common.CleanString(c.GetHeader(header), maxPlayerIDLen)
		if id == "" || !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "игрок не определён",
				"code":  "unauthorized",
			})
			return
		}
		c.Set(playerIDKey, id)
		c.Next()
	}
}

// PlayerID возвращает игрока текущего запроса ("" если RequirePlayer не отработал).
func PlayerID(c *gin.Context) string {
	return c.GetString(playerIDKey)
}
