// Package admin, handlers.go: HTTP-обработчики админки.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/retro-wallet/internal/api/respond"
)

// Handler обрабатывает админские запросы.
type Handler struct {
	svc *Service
}

// NewHandler создаёт обработчик админки.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes регистрирует админские маршруты за проверкой ключа.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/admin", h.requireKey)
	g.POST("/transactions", h.correct)
	g.GET("/players/:player_id/reconcile", h.reconcile)
}

// requireKey пропускает дальше только с верным X-Admin-Key.
func (h *Handler) requireKey(c *gin.Context) {
	if err := h.svc.Authenticate(c.Request.Context(), c.ClientIP(), c.GetHeader(KeyHeader)); err != nil {
		respond.Error(c, err)
		return
	}
	c.Next()
}

// correct: POST /admin/transactions
func (h *Handler) correct(c *gin.Context) {
	var req CorrectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, err)
		return
	}

	res, err := h.svc.Correct(c.Request.Context(), req)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// reconcile: GET /admin/players/:player_id/reconcile
func (h *Handler) reconcile(c *gin.Context) {
	res, err := h.svc.Reconcile(c.Request.Context(), c.Param("player_id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
