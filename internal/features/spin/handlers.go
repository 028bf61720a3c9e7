// Package spin, handlers.go: HTTP-обработчик колеса удачи.
package spin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/retro-wallet/internal/api/middleware"
	"serotonyl.ru/retro-wallet/internal/api/respond"
)

// Handler обрабатывает запросы спина.
type Handler struct {
	svc *Service
}

// NewHandler создаёт обработчик спина.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes регистрирует маршруты спина.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/spins/prizes", h.listPrizes)
	rg.POST("/spins", h.spin)
}

// listPrizes: GET /spins/prizes
func (h *Handler) listPrizes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"prizes": h.svc.Prizes()})
}

// spin: POST /spins
func (h *Handler) spin(c *gin.Context) {
	var req SpinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, err)
		return
	}

	res, err := h.svc.Spin(c.Request.Context(), middleware.PlayerID(c), req)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
