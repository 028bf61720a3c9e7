// Package respond переводит ошибки сервисов в HTTP-ответы.
// Все обработчики отдают ошибки в одном формате: {"error": "...", "code": "..."}.
package respond

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/retro-wallet/internal/common"
)

// RetryAfterSeconds: подсказка клиенту для ретраев при сбоях инфраструктуры.
const RetryAfterSeconds = "1"

// Error отдаёт клиенту ошибку с подходящим статусом.
//
//   - валидация → 422
//   - нехватка средств → 409
//   - неизвестные игра/товар → 404
//   - выключенная функция → 404
//   - неверный админский ключ → 401, блокировка → 429
//   - хранилище/таймаут → 503 + Retry-After, повторять с тем же ключом
//   - остальное → 500
func Error(c *gin.Context, err error) {
	status, code := classify(err)
	_ = c.Error(err)

	msg := err.Error()
	switch status {
	case http.StatusServiceUnavailable:
		c.Header("Retry-After", RetryAfterSeconds)
		msg = "сервис временно недоступен, повторите запрос с тем же ключом"
	case http.StatusInternalServerError:
		log.WithError(err).WithField("path", c.FullPath()).Error("Необработанная ошибка")
		msg = "внутренняя ошибка"
	}

	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code})
}

// BadRequest: тело запроса не разобралось.
func BadRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error": "некорректный запрос: " + err.Error(),
		"code":  "bad_request",
	})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrInvalidIntent),
		errors.Is(err, common.ErrInvalidScore),
		errors.Is(err, common.ErrInvalidQuantity):
		return http.StatusUnprocessableEntity, "invalid"
	case errors.Is(err, common.ErrInsufficientBalance):
		return http.StatusConflict, "insufficient_balance"
	case errors.Is(err, common.ErrUnknownGame),
		errors.Is(err, common.ErrUnknownItem),
		errors.Is(err, common.ErrEntryNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, common.ErrShopDisabled),
		errors.Is(err, common.ErrSpinDisabled),
		errors.Is(err, common.ErrDailyDisabled),
		errors.Is(err, common.ErrAdminDisabled):
		return http.StatusNotFound, "disabled"
	case errors.Is(err, common.ErrWrongAdminKey):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, common.ErrTooManyAttempts):
		return http.StatusTooManyRequests, "locked_out"
	case errors.Is(err, common.ErrStorage),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal"
}
