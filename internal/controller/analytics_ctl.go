package controller

import (
	"github.com/gin-gonic/gin"

	"shop_insight_v1/internal/api/dto"
	"shop_insight_v1/internal/middleware"
	"shop_insight_v1/internal/service"
)

// AnalyticsController 店铺分析，所有接口都先校验店铺归属
type AnalyticsController struct {
	storeService     *service.StoreService
	analyticsService *service.AnalyticsService
}

func NewAnalyticsController(storeService *service.StoreService, analyticsService *service.AnalyticsService) *AnalyticsController {
	return &AnalyticsController{storeService: storeService, analyticsService: analyticsService}
}

// ownedStoreID 失败时已写入错误
func (ctrl *AnalyticsController) ownedStoreID(c *gin.Context) (int64, bool) {
	id, valid := parseID(c, "id")
	if !valid {
		return 0, false
	}
	if _, err := ctrl.storeService.GetOwned(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		fail(c, err)
		return 0, false
	}
	return id, true
}

func bindRange(c *gin.Context) (dto.RangeQuery, bool) {
	var q dto.RangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindFail(c, err)
		return q, false
	}
	return q, true
}

// Overview
// @Summary 概览
// @Description 不传区间时统计全部订单
// @Tags Analytics (分析)
// @Produce json
// @Security BearerAuth
// @Param id path int true "店铺 ID"
// @Param from query string false "开始日期 YYYY-MM-DD"
// @Param to query string false "结束日期 YYYY-MM-DD"
// @Success 200 {object} Response{data=dto.OverviewResponse}
// @Router /api/analytics/store/{id}/overview [get]
func (ctrl *AnalyticsController) Overview(c *gin.Context) {
	storeID, valid := ctrl.ownedStoreID(c)
	if !valid {
		return
	}
	q, valid := bindRange(c)
	if !valid {
		return
	}
	resp, err := ctrl.analyticsService.Overview(c.Request.Context(), storeID, q)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, resp)
}

// SalesByDay
// @Summary 每日销售
// @Tags Analytics (分析)
// @Produce json
// @Security BearerAuth
// @Param id path int true "店铺 ID"
// @Param from query string false "开始日期 YYYY-MM-DD，默认 30 天前"
// @Param to query string false "结束日期 YYYY-MM-DD，默认今天"
// @Success 200 {object} Response{data=[]repository.DailySales}
// @Router /api/analytics/store/{id}/sales-by-day [get]
func (ctrl *AnalyticsController) SalesByDay(c *gin.Context) {
	storeID, valid := ctrl.ownedStoreID(c)
	if !valid {
		return
	}
	q, valid := bindRange(c)
	if !valid {
		return
	}
	resp, err := ctrl.analyticsService.SalesByDay(c.Request.Context(), storeID, q)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, resp)
}

// TopProducts
// @Summary 热销商品
// @Tags Analytics (分析)
// @Produce json
// @Security BearerAuth
// @Param id path int true "店铺 ID"
// @Param from query string false "开始日期"
// @Param to query string false "结束日期"
// @Param limit query int false "数量" default(10)
// @Success 200 {object} Response{data=[]repository.ProductSales}
// @Router /api/analytics/store/{id}/top-products [get]
func (ctrl *AnalyticsController) TopProducts(c *gin.Context) {
	storeID, valid := ctrl.ownedStoreID(c)
	if !valid {
		return
	}
	var q dto.TopQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindFail(c, err)
		return
	}
	resp, err := ctrl.analyticsService.TopProducts(c.Request.Context(), storeID, q)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, resp)
}

// TopCustomers
// @Summary 高价值客户
// @Tags Analytics (分析)
// @Produce json
// @Security BearerAuth
// @Param id path int true "店铺 ID"
// @Param limit query int false "数量" default(10)
// @Success 200 {object} Response{data=[]dto.TopCustomer}
// @Router /api/analytics/store/{id}/top-customers [get]
func (ctrl *AnalyticsController) TopCustomers(c *gin.Context) {
	storeID, valid := ctrl.ownedStoreID(c)
	if !valid {
		return
	}
	var q dto.TopQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindFail(c, err)
		return
	}
	resp, err := ctrl.analyticsService.TopCustomers(c.Request.Context(), storeID, q.Limit)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, resp)
}

// CustomerSplit
// @Summary 新老客户
// @Tags Analytics (分析)
// @Produce json
// @Security BearerAuth
// @Param id path int true "店铺 ID"
// @Param from query string false "开始日期"
// @Param to query string false "结束日期"
// @Success 200 {object} Response{data=dto.CustomerSplitResponse}
// @Router /api/analytics/store/{id}/customer-split [get]
func (ctrl *AnalyticsController) CustomerSplit(c *gin.Context) {
	storeID, valid := ctrl.ownedStoreID(c)
	if !valid {
		return
	}
	q, valid := bindRange(c)
	if !valid {
		return
	}
	resp, err := ctrl.analyticsService.CustomerSplit(c.Request.Context(), storeID, q)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, resp)
}

// TrafficHeatmap
// @Summary 下单时段热力图
// @Tags Analytics (分析)
// @Produce json
// @Security BearerAuth
// @Param id path int true "店铺 ID"
// @Param from query string false "开始日期"
// @Param to query string false "结束日期"
// @Success 200 {object} Response{data=dto.HeatmapResponse}
// @Router /api/analytics/store/{id}/traffic-heatmap [get]
func (ctrl *AnalyticsController) TrafficHeatmap(c *gin.Context) {
	storeID, valid := ctrl.ownedStoreID(c)
	if !valid {
		return
	}
	q, valid := bindRange(c)
	if !valid {
		return
	}
	resp, err := ctrl.analyticsService.Heatmap(c.Request.Context(), storeID, q)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, resp)
}

// Discounts
// @Summary 折扣使用
// @Tags Analytics (分析)
// @Produce json
// @Security BearerAuth
// @Param id path int true "店铺 ID"
// @Param from query string false "开始日期"
// @Param to query string false "结束日期"
// @Success 200 {object} Response{data=dto.DiscountSummaryResponse}
// @Router /api/analytics/store/{id}/discounts [get]
func (ctrl *AnalyticsController) Discounts(c *gin.Context) {
	storeID, valid := ctrl.ownedStoreID(c)
	if !valid {
		return
	}
	q, valid := bindRange(c)
	if !valid {
		return
	}
	resp, err := ctrl.analyticsService.Discounts(c.Request.Context(), storeID, q)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, resp)
}
