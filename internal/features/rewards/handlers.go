// Package rewards, handlers.go: HTTP-обработчик ежедневного бонуса.
package rewards

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/retro-wallet/internal/api/middleware"
	"serotonyl.ru/retro-wallet/internal/api/respond"
)

// Handler обрабатывает запросы наград.
type Handler struct {
	svc *Service
}

// NewHandler создаёт обработчик наград.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes регистрирует маршруты наград.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/rewards/daily", h.claimDaily)
}

// claimDaily: POST /rewards/daily
func (h *Handler) claimDaily(c *gin.Context) {
	res, err := h.svc.ClaimDaily(c.Request.Context(), middleware.PlayerID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
