package handler

import (
	"net/http"

	"log/slog"

	"github.com/gin-gonic/gin"

	appIngest "github.com/docuchat/backend/internal/application/ingest"
	"github.com/docuchat/backend/internal/infrastructure/log"
	"github.com/docuchat/backend/internal/interfaces/http/middleware"
	"github.com/docuchat/backend/internal/interfaces/http/response"
)

// StatsHandler 服务统计处理器
type StatsHandler struct {
	service *appIngest.Service
	logger  *slog.Logger
}

// NewStatsHandler 创建服务统计处理器
func NewStatsHandler(service *appIngest.Service) *StatsHandler {
	return &StatsHandler{
		service: service,
		logger:  log.NewModuleLogger("http", "stats"),
	}
}

// Totals 用户维度的服务总量
// GET /api/v1/stats
func (h *StatsHandler) Totals(c *gin.Context) {
	totals, err := h.service.Totals(c.Request.Context(), middleware.OwnerID(c))
	if err != nil {
		h.logger.Error("Failed to collect service totals", "error", err)
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, totals)
}
