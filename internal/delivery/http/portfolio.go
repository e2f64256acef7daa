package http

import (
	"net/http"

	"portfolio-tracker/internal/dto"
	"portfolio-tracker/internal/model"
	"portfolio-tracker/pkg/logger"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupPortfolio(base *echo.Group) {
	v1 := base.Group("/v1/portfolio", h.identify)
	{
		v1.GET("", h.getPortfolio)
		v1.PUT("/settings", h.updateSettings)
		v1.POST("/stocks", h.addStock)
		v1.PATCH("/stocks/:index", h.editStock)
		v1.DELETE("/stocks/:index", h.deleteStock)
		v1.GET("/summary", h.getSummary)
		v1.GET("/distribution", h.getDistribution)
		v1.POST("/reconcile", h.reconcile)
		v1.GET("/reconcile", h.reconcileState)
	}
}

func (h *HttpAPIHandler) getPortfolio(c echo.Context) error {
	state, err := h.service.PortfolioService.Get(c.Request().Context(), userID(c))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("success", state))
}

func (h *HttpAPIHandler) updateSettings(c echo.Context) error {
	req := new(dto.UpdateSettingsRequest)
	if resp := h.bindAndValidate(c, req); resp != nil {
		return c.JSON(resp.Code, resp)
	}
	state, err := h.service.PortfolioService.UpdateSettings(c.Request().Context(), userID(c), *req)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Settings updated", state))
}

func (h *HttpAPIHandler) addStock(c echo.Context) error {
	state, err := h.service.PortfolioService.AddPosition(c.Request().Context(), userID(c))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, dto.NewBaseResponse(http.StatusCreated, "Position added", state))
}

func stockIndex(c echo.Context) (int, error) {
	var index int
	err := echo.PathParamsBinder(c).MustInt("index", &index).BindError()
	return index, err
}

func (h *HttpAPIHandler) editStock(c echo.Context) error {
	ctx := c.Request().Context()
	index, err := stockIndex(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid index"))
	}
	req := new(dto.EditStockRequest)
	if resp := h.bindAndValidate(c, req); resp != nil {
		return c.JSON(resp.Code, resp)
	}

	res, err := h.service.PortfolioService.EditPosition(ctx, userID(c), index, model.Field(req.Field), req.Value)
	if err != nil {
		return h.errorResponse(c, err)
	}
	if res.RefreshTicker == "" {
		return c.JSON(http.StatusOK, dto.NewSuccessResponse("Position updated", res.State))
	}

	// A new entry price is priced right away.
	if _, err := h.service.ReconcilerService.RefreshPosition(ctx, userID(c), res.RefreshTicker); err != nil {
		h.log.WarnContext(ctx, "Failed to refresh position", logger.StringField("ticker", res.RefreshTicker), logger.ErrorField(err))
	}
	state, err := h.service.PortfolioService.Get(ctx, userID(c))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Position updated", state))
}

func (h *HttpAPIHandler) deleteStock(c echo.Context) error {
	index, err := stockIndex(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid index"))
	}
	state, err := h.service.PortfolioService.DeletePosition(c.Request().Context(), userID(c), index)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Position deleted", state))
}

func (h *HttpAPIHandler) bindGroupBy(c echo.Context) (dto.GroupBy, *dto.BaseResponse) {
	req := new(dto.GroupByQuery)
	if resp := h.bindAndValidate(c, req); resp != nil {
		return "", resp
	}
	if req.GroupBy == "" {
		return dto.GroupBySector, nil
	}
	return dto.GroupBy(req.GroupBy), nil
}

func (h *HttpAPIHandler) getSummary(c echo.Context) error {
	groupBy, resp := h.bindGroupBy(c)
	if resp != nil {
		return c.JSON(resp.Code, resp)
	}
	summary, err := h.service.PortfolioService.Summary(c.Request().Context(), userID(c), groupBy)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("success", summary))
}

func (h *HttpAPIHandler) getDistribution(c echo.Context) error {
	groupBy, resp := h.bindGroupBy(c)
	if resp != nil {
		return c.JSON(resp.Code, resp)
	}
	items, err := h.service.PortfolioService.Distribution(c.Request().Context(), userID(c), groupBy)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("success", items))
}

func (h *HttpAPIHandler) reconcile(c echo.Context) error {
	result, err := h.service.ReconcilerManager.RunNow(c.Request().Context(), userID(c))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Reconciliation completed", result))
}

func (h *HttpAPIHandler) reconcileState(c echo.Context) error {
	state := h.service.ReconcilerManager.State(userID(c))
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("success", map[string]string{"state": string(state)}))
}
