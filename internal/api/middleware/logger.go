// Package middleware содержит промежуточные обработчики HTTP:
// логирование, восстановление после паники, rate-limiting и личность игрока.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Logger логирует каждый запрос после его обработки.
// Записывает: метод, путь, статус, длительность, player_id (если есть).
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := log.WithFields(log.Fields{
			"method":    c.Request.Method,
			"path":      c.FullPath(),
			"status":    status,
			"duration":  time.Since(start).String(),
			"client_ip": c.ClientIP(),
			"player_id": PlayerID(c),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			entry.Error("Запрос завершился ошибкой")
		case status >= 400:
			entry.Info("Запрос отклонён")
		default:
			entry.Debug("Входящий запрос")
		}
	}
}
