package http

import (
	"net/http"

	"portfolio-tracker/internal/dto"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupTickers(base *echo.Group) {
	v1 := base.Group("/v1/tickers")
	{
		v1.GET("/suggest", h.suggestTickers)
		v1.GET("/:ticker", h.getTicker)
	}
}

func (h *HttpAPIHandler) suggestTickers(c echo.Context) error {
	req := new(dto.SuggestQuery)
	if resp := h.bindAndValidate(c, req); resp != nil {
		return c.JSON(resp.Code, resp)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("success", h.service.TickerService.Suggest(req.Q)))
}

func (h *HttpAPIHandler) getTicker(c echo.Context) error {
	info := h.service.TickerService.Info(c.Request().Context(), c.Param("ticker"))
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("success", info))
}

func (h *HttpAPIHandler) SetupMarket(base *echo.Group) {
	base.GET("/v1/market/status", h.getMarketStatus)
}

func (h *HttpAPIHandler) getMarketStatus(c echo.Context) error {
	status := h.service.MarketService.Status(c.Request().Context())
	if h.service.SchedulerService != nil {
		status.NextRuns = h.service.SchedulerService.NextRuns()
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("success", status))
}
