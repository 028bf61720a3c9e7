// Package games, handlers.go: HTTP-обработчики игр.
package games

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/retro-wallet/internal/api/middleware"
	"serotonyl.ru/retro-wallet/internal/api/respond"
)

// Handler обрабатывает запросы по играм.
type Handler struct {
	svc *Service
}

// NewHandler создаёт обработчик игр.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes регистрирует маршруты игр.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/games", h.listGames)
	rg.POST("/games/scores", h.submitScore)
}

// listGames: GET /games
func (h *Handler) listGames(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"games": h.svc.Catalog()})
}

// submitScore: POST /games/scores
func (h *Handler) submitScore(c *gin.Context) {
	var req ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, err)
		return
	}

	res, err := h.svc.SubmitScore(c.Request.Context(), middleware.PlayerID(c), req)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
