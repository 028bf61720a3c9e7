// Package shop, handlers.go: HTTP-обработчики магазина.
package shop

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/retro-wallet/internal/api/middleware"
	"serotonyl.ru/retro-wallet/internal/api/respond"
)

// Handler обрабатывает запросы магазина.
type Handler struct {
	svc *Service
}

// NewHandler создаёт обработчик магазина.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes регистрирует маршруты магазина.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/shop/items", h.listItems)
	rg.POST("/shop/purchases", h.purchase)
}

// listItems: GET /shop/items
func (h *Handler) listItems(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": h.svc.Items()})
}

// purchase: POST /shop/purchases
func (h *Handler) purchase(c *gin.Context) {
	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, err)
		return
	}

	res, err := h.svc.Purchase(c.Request.Context(), middleware.PlayerID(c), req)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
