package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shop_insight_v1/internal/middleware"
	"shop_insight_v1/internal/model"
	"shop_insight_v1/internal/service"
	"shop_insight_v1/internal/task"
)

// SyncController 同步控制器
type SyncController struct {
	storeService *service.StoreService
	taskManager  *task.TaskManager
}

// NewSyncController 创建同步控制器
func NewSyncController(storeService *service.StoreService, taskManager *task.TaskManager) *SyncController {
	return &SyncController{storeService: storeService, taskManager: taskManager}
}

const contextKeyStore = "owned_store"

// LoadStore 校验店铺归属并放入上下文，须挂在冷却中间件之前，
// 否则其他租户的请求也会占用冷却
func (ctrl *SyncController) LoadStore(c *gin.Context) {
	store, ok := ctrl.ownedStore(c)
	if !ok {
		return
	}
	c.Set(contextKeyStore, store)
	c.Next()
}

// ownedStore 优先取 LoadStore 的结果，失败时已写入错误
func (ctrl *SyncController) ownedStore(c *gin.Context) (*model.Store, bool) {
	if v, exists := c.Get(contextKeyStore); exists {
		if store, ok := v.(*model.Store); ok {
			return store, true
		}
	}

	id, valid := parseID(c, "id")
	if !valid {
		return nil, false
	}
	store, err := ctrl.storeService.GetOwned(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return store, true
}

// ==================== Handler 实现 ====================

// SyncStore 全量同步
// @Summary 同步店铺全部数据
// @Description 按 商品 -> 客户 -> 订单 排队同步；已有进行中的任务时返回该任务
// @Tags Sync (同步)
// @Produce json
// @Security BearerAuth
// @Param id path int true "店铺 ID"
// @Success 202 {object} dto.SyncTriggerResponse
// @Failure 404 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse "冷却中"
// @Router /api/sync/store/{id} [post]
func (ctrl *SyncController) SyncStore(c *gin.Context) {
	ctrl.trigger(c, model.SyncEntityAll)
}

// SyncProducts 只同步商品
// @Summary 同步商品
// @Tags Sync (同步)
// @Produce json
// @Security BearerAuth
// @Param id path int true "店铺 ID"
// @Success 202 {object} dto.SyncTriggerResponse
// @Failure 429 {object} ErrorResponse "冷却中"
// @Router /api/sync/store/{id}/products [post]
func (ctrl *SyncController) SyncProducts(c *gin.Context) {
	ctrl.trigger(c, model.SyncEntityProducts)
}

// SyncCustomers 只同步客户
// @Summary 同步客户
// @Tags Sync (同步)
// @Produce json
// @Security BearerAuth
// @Param id path int true "店铺 ID"
// @Success 202 {object} dto.SyncTriggerResponse
// @Failure 429 {object} ErrorResponse "冷却中"
// @Router /api/sync/store/{id}/customers [post]
func (ctrl *SyncController) SyncCustomers(c *gin.Context) {
	ctrl.trigger(c, model.SyncEntityCustomers)
}

// SyncOrders 只同步订单
// @Summary 同步订单
// @Tags Sync (同步)
// @Produce json
// @Security BearerAuth
// @Param id path int true "店铺 ID"
// @Success 202 {object} dto.SyncTriggerResponse
// @Failure 429 {object} ErrorResponse "冷却中"
// @Router /api/sync/store/{id}/orders [post]
func (ctrl *SyncController) SyncOrders(c *gin.Context) {
	ctrl.trigger(c, model.SyncEntityOrders)
}

func (ctrl *SyncController) trigger(c *gin.Context, entity string) {
	store, ok := ctrl.ownedStore(c)
	if !ok {
		return
	}

	resp, err := ctrl.taskManager.TriggerStoreSync(c.Request.Context(), store, entity)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

// Status 同步状态
// @Summary 店铺同步状态
// @Tags Sync (同步)
// @Produce json
// @Security BearerAuth
// @Param id path int true "店铺 ID"
// @Success 200 {object} Response{data=dto.SyncStatusResponse}
// @Failure 404 {object} ErrorResponse
// @Router /api/sync/store/{id}/status [get]
func (ctrl *SyncController) Status(c *gin.Context) {
	store, ok := ctrl.ownedStore(c)
	if !ok {
		return
	}

	resp, err := ctrl.taskManager.GetStoreStatus(c.Request.Context(), store)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, resp)
}

// GetJob 查询同步任务
// @Summary 查询同步任务
// @Tags Sync (同步)
// @Produce json
// @Security BearerAuth
// @Param jobId path string true "任务 ID"
// @Success 200 {object} Response{data=dto.SyncJobInfo}
// @Failure 404 {object} ErrorResponse
// @Router /api/sync/jobs/{jobId} [get]
func (ctrl *SyncController) GetJob(c *gin.Context) {
	ctx := c.Request.Context()
	job, err := ctrl.taskManager.GetJob(ctx, c.Param("jobId"))
	if err != nil {
		fail(c, err)
		return
	}
	// 其他租户的任务视为不存在
	if _, err := ctrl.storeService.GetOwned(ctx, middleware.GetUserID(c), job.StoreID); err != nil {
		fail(c, service.ErrSyncJobNotFound)
		return
	}
	success(c, task.ToJobInfo(job))
}
