package controller

import (
	"github.com/gin-gonic/gin"

	"shop_insight_v1/internal/api/dto"
	"shop_insight_v1/internal/middleware"
	"shop_insight_v1/internal/service"
)

type StoreController struct {
	storeService *service.StoreService
}

func NewStoreController(s *service.StoreService) *StoreController {
	return &StoreController{storeService: s}
}

// Connect 接入店铺
// @Summary 接入店铺
// @Description 域名可写 demo / demo.myshopify.com / https://demo.myshopify.com；调用者没有租户时自动创建
// @Tags Store (店铺)
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.ConnectStoreRequest true "店铺域名与 Admin API Token"
// @Success 201 {object} Response{data=dto.StoreInfo}
// @Failure 400 {object} ErrorResponse "域名非法或凭证校验失败"
// @Failure 409 {object} ErrorResponse "店铺已接入"
// @Router /api/stores [post]
func (ctrl *StoreController) Connect(c *gin.Context) {
	var req dto.ConnectStoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	info, err := ctrl.storeService.Connect(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, info)
}

// List 店铺列表
// @Summary 店铺列表
// @Tags Store (店铺)
// @Produce json
// @Security BearerAuth
// @Param keyword query string false "名称或域名关键词"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} Response{data=dto.StoreListResponse}
// @Router /api/stores [get]
func (ctrl *StoreController) List(c *gin.Context) {
	var req dto.StoreListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFail(c, err)
		return
	}
	resp, err := ctrl.storeService.List(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, resp)
}

// Get 店铺详情
// @Summary 店铺详情
// @Tags Store (店铺)
// @Produce json
// @Security BearerAuth
// @Param id path int true "店铺 ID"
// @Success 200 {object} Response{data=dto.StoreInfo}
// @Failure 404 {object} ErrorResponse
// @Router /api/stores/{id} [get]
func (ctrl *StoreController) Get(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	info, err := ctrl.storeService.Get(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, info)
}

// Update 修改店铺
// @Summary 修改店铺名称或 Token
// @Tags Store (店铺)
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "店铺 ID"
// @Param request body dto.UpdateStoreRequest true "要修改的字段"
// @Success 200 {object} Response{data=dto.StoreInfo}
// @Failure 404 {object} ErrorResponse
// @Router /api/stores/{id} [put]
func (ctrl *StoreController) Update(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	var req dto.UpdateStoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	info, err := ctrl.storeService.Update(c.Request.Context(), middleware.GetUserID(c), id, &req)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, info)
}

// Delete 删除店铺
// @Summary 删除店铺
// @Description 同时删除商品、客户、订单与同步记录
// @Tags Store (店铺)
// @Produce json
// @Security BearerAuth
// @Param id path int true "店铺 ID"
// @Success 200 {object} Response
// @Failure 404 {object} ErrorResponse
// @Router /api/stores/{id} [delete]
func (ctrl *StoreController) Delete(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	if err := ctrl.storeService.Delete(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		fail(c, err)
		return
	}
	success(c, gin.H{"message": "store deleted"})
}
