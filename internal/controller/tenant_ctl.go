package controller

import (
	"github.com/gin-gonic/gin"

	"shop_insight_v1/internal/api/dto"
	"shop_insight_v1/internal/middleware"
	"shop_insight_v1/internal/service"
)

type TenantController struct {
	tenantService *service.TenantService
}

func NewTenantController(s *service.TenantService) *TenantController {
	return &TenantController{tenantService: s}
}

// Create
// @Summary 创建租户
// @Tags Tenant (租户)
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateTenantRequest true "租户名"
// @Success 201 {object} Response{data=dto.TenantInfo}
// @Failure 409 {object} ErrorResponse "已属于某租户"
// @Router /api/tenants [post]
func (ctrl *TenantController) Create(c *gin.Context) {
	var req dto.CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	info, err := ctrl.tenantService.Create(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, info)
}

// GetMine
// @Summary 我的租户
// @Tags Tenant (租户)
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=dto.TenantInfo}
// @Failure 404 {object} ErrorResponse
// @Router /api/tenants/me [get]
func (ctrl *TenantController) GetMine(c *gin.Context) {
	info, err := ctrl.tenantService.GetMine(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	success(c, info)
}

// UpdateMine
// @Summary 修改租户名
// @Tags Tenant (租户)
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.UpdateTenantRequest true "租户名"
// @Success 200 {object} Response{data=dto.TenantInfo}
// @Failure 403 {object} ErrorResponse
// @Router /api/tenants/me [put]
func (ctrl *TenantController) UpdateMine(c *gin.Context) {
	var req dto.UpdateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	info, err := ctrl.tenantService.UpdateMine(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, info)
}

// DeleteMine
// @Summary 删除租户
// @Description 级联删除全部店铺及其同步数据，用户保留
// @Tags Tenant (租户)
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response
// @Failure 403 {object} ErrorResponse
// @Router /api/tenants/me [delete]
func (ctrl *TenantController) DeleteMine(c *gin.Context) {
	if err := ctrl.tenantService.DeleteMine(c.Request.Context(), middleware.GetUserID(c)); err != nil {
		fail(c, err)
		return
	}
	success(c, gin.H{"message": "tenant deleted"})
}
