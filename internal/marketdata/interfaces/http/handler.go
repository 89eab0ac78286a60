package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fynnwu/marketdata/internal/marketdata/application"
	"github.com/fynnwu/marketdata/internal/marketdata/domain"
)

type MarketDataHandler struct {
	svc *application.MarketDataService
	fx  *application.FXService
}

func NewMarketDataHandler(svc *application.MarketDataService, fx *application.FXService) *MarketDataHandler {
	return &MarketDataHandler{svc: svc, fx: fx}
}

func (h *MarketDataHandler) RegisterRoutes(r *gin.RouterGroup) {
	v1 := r.Group("/v1")
	{
		market := v1.Group("/market/:class")
		{
			market.GET("/snapshots", h.ListSnapshots)
			market.GET("/snapshots/:symbol", h.GetSnapshot)
			market.DELETE("/snapshots/:symbol", h.InvalidateSnapshot)
			market.GET("/instruments", h.ListInstruments)
			market.GET("/history/:symbol", h.GetHistory)
			market.GET("/calendar", h.GetCalendar)
		}
		v1.GET("/fx/usdtwd", h.GetUsdTwd)
	}
}

func (h *MarketDataHandler) GetSnapshot(c *gin.Context) {
	class, err := domain.ParseAssetClass(c.Param("class"))
	if err != nil {
		respondError(c, err)
		return
	}

	dto, err := h.svc.GetSnapshot(c.Request.Context(), class, c.Param("symbol"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

func (h *MarketDataHandler) ListSnapshots(c *gin.Context) {
	class, err := domain.ParseAssetClass(c.Param("class"))
	if err != nil {
		respondError(c, err)
		return
	}

	var symbols []string
	if raw := c.Query("symbols"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				symbols = append(symbols, s)
			}
		}
	}

	dto, err := h.svc.ListSnapshots(c.Request.Context(), class, symbols)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

func (h *MarketDataHandler) InvalidateSnapshot(c *gin.Context) {
	class, err := domain.ParseAssetClass(c.Param("class"))
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.svc.Invalidate(c.Request.Context(), class, c.Param("symbol")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *MarketDataHandler) ListInstruments(c *gin.Context) {
	class, err := domain.ParseAssetClass(c.Param("class"))
	if err != nil {
		respondError(c, err)
		return
	}

	dtos, err := h.svc.ListInstruments(c.Request.Context(), class)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"asset_class": class, "instruments": dtos})
}

func (h *MarketDataHandler) GetHistory(c *gin.Context) {
	class, err := domain.ParseAssetClass(c.Param("class"))
	if err != nil {
		respondError(c, err)
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if l, err := strconv.Atoi(raw); err == nil && l > 0 {
			limit = l
		}
	}

	entries, err := h.svc.GetHistory(c.Request.Context(), class, c.Param("symbol"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"asset_class": class, "symbol": c.Param("symbol"), "entries": entries})
}

func (h *MarketDataHandler) GetCalendar(c *gin.Context) {
	class, err := domain.ParseAssetClass(c.Param("class"))
	if err != nil {
		respondError(c, err)
		return
	}

	dto, err := h.svc.CalendarStatus(class)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto)
}

func (h *MarketDataHandler) GetUsdTwd(c *gin.Context) {
	c.JSON(http.StatusOK, h.fx.UsdTwd(c.Request.Context()))
}

// respondError 按领域错误类别映射 HTTP 状态码，类别随响应体返回
func respondError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	if kind := domain.KindOf(err); kind != "" {
		body["kind"] = string(kind)
	}
	c.JSON(statusForError(err), body)
}

func statusForError(err error) int {
	switch domain.KindOf(err) {
	case domain.KindInvalidSymbolFormat:
		return http.StatusBadRequest
	case domain.KindUnknownSymbol:
		return http.StatusNotFound
	case domain.KindNoDataAvailable:
		return http.StatusServiceUnavailable
	case domain.KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	case domain.KindUpstreamUnavailable, domain.KindMalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
