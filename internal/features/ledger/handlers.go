// Package ledger, handlers.go: HTTP-обработчики проекций кошелька.
// Сами обработчики ничего не меняют: счёт меняет только Service.Apply.
package ledger

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/retro-wallet/internal/api/middleware"
	"serotonyl.ru/retro-wallet/internal/api/respond"
)

// Handler обрабатывает запросы к кошельку.
type Handler struct {
	svc *Service
}

// NewHandler создаёт обработчик кошелька.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes регистрирует маршруты кошелька в группе с уже известным игроком.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/wallet", h.getWallet)
	rg.GET("/wallet/history", h.getHistory)
}

// getWallet: GET /wallet
func (h *Handler) getWallet(c *gin.Context) {
	snap, err := h.svc.Snapshot(c.Request.Context(), middleware.PlayerID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

type historyResponse struct {
	Entries []*Entry `json:"entries"`
	// NextBefore: курсор следующей страницы (?before=), 0 если страница последняя
	NextBefore int64 `json:"next_before,omitempty"`
}

// getHistory: GET /wallet/history?category=&game=&since=&until=&before=&limit=
func (h *Handler) getHistory(c *gin.Context) {
	f, err := parseHistoryFilter(c)
	if err != nil {
		respond.Error(c, err)
		return
	}

	entries, err := h.svc.History(c.Request.Context(), middleware.PlayerID(c), f)
	if err != nil {
		respond.Error(c, err)
		return
	}

	resp := historyResponse{Entries: entries}
	if n := len(entries); n > 0 && n == h.svc.historyLimit(f.Limit) {
		resp.NextBefore = entries[n-1].Seq
	}
	c.JSON(http.StatusOK, resp)
}

func parseHistoryFilter(c *gin.Context) (HistoryFilter, error) {
	f := HistoryFilter{
		Category:   Category(c.Query("category")),
		SourceGame: c.Query("game"),
	}

	var err error
	if f.Since, err = parseTimeParam(c, "since"); err != nil {
		return f, err
	}
	if f.Until, err = parseTimeParam(c, "until"); err != nil {
		return f, err
	}
	if v := c.Query("before"); v != "" {
		if f.BeforeSeq, err = strconv.ParseInt(v, 10, 64); err != nil {
			return f, invalid("before", "должен быть числом")
		}
	}
	if v := c.Query("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil {
			return f, invalid("limit", "должен быть числом")
		}
	}
	return f, nil
}

func parseTimeParam(c *gin.Context, name string) (time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, invalid(name, fmt.Sprintf("ожидается RFC3339, получено %q", v))
	}
	return t, nil
}
