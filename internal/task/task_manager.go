package task

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"shop_insight_v1/internal/api/dto"
	"shop_insight_v1/internal/apperr"
	"shop_insight_v1/internal/model"
	"shop_insight_v1/internal/repository"
	"shop_insight_v1/internal/service"
)

// ==================== TaskManager 同步任务管理器 ====================

// TaskManager 统一管理 手动触发 / 定时 的同步任务
type TaskManager struct {
	runner   *SyncJobRunner
	schedule *ScheduleSyncTask
	jobRepo  repository.SyncJobRepository
	logger   *zap.Logger
}

// TaskManagerDeps 任务管理器依赖
type TaskManagerDeps struct {
	Syncer    StoreSyncer
	StoreRepo repository.StoreRepository
	JobRepo   repository.SyncJobRepository
	// 任务结束后调用，可为空
	OnFinish []FinishHook
	Logger   *zap.Logger
}

// TaskManagerConfig 任务管理器配置
type TaskManagerConfig struct {
	Runner   RunnerConfig
	Schedule string // cron 表达式（含秒），空则不启用
}

func NewTaskManager(deps *TaskManagerDeps, cfg TaskManagerConfig) *TaskManager {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	runner := NewSyncJobRunner(deps.Syncer, deps.StoreRepo, deps.JobRepo, cfg.Runner, logger)
	for _, hook := range deps.OnFinish {
		runner.OnFinish(hook)
	}

	return &TaskManager{
		runner:   runner,
		schedule: NewScheduleSyncTask(deps.StoreRepo, runner, cfg.Schedule, logger),
		jobRepo:  deps.JobRepo,
		logger:   logger.Named("task_manager"),
	}
}

// ==================== 生命周期管理 ====================

func (tm *TaskManager) Start(ctx context.Context) error {
	tm.logger.Info("starting sync tasks")
	if err := tm.runner.Start(ctx); err != nil {
		return err
	}
	return tm.schedule.Start()
}

// Stop 先停定时器再停执行器
func (tm *TaskManager) Stop() {
	tm.logger.Info("stopping sync tasks")
	tm.schedule.Stop()
	tm.runner.Stop()
}

// ==================== 手动触发接口 ====================

// TriggerStoreSync 排队同步任务；已有进行中的任务时返回该任务
func (tm *TaskManager) TriggerStoreSync(ctx context.Context, store *model.Store, entity string) (*dto.SyncTriggerResponse, error) {
	job, created, err := tm.runner.Enqueue(ctx, store, entity, model.SyncTriggerManual)
	if err != nil {
		return nil, err
	}

	msg := "sync job queued"
	if !created {
		msg = "a sync job for this store is already in progress"
	}
	return &dto.SyncTriggerResponse{
		Success: true,
		Message: msg,
		Stats:   ToJobStats(job),
	}, nil
}

// TriggerAllStoresSync 立即为所有店铺排队
func (tm *TaskManager) TriggerAllStoresSync(ctx context.Context) int {
	return tm.schedule.EnqueueAll(ctx)
}

// ==================== 状态查询 ====================

func (tm *TaskManager) GetJob(ctx context.Context, jobID string) (*model.SyncJob, error) {
	job, err := tm.jobRepo.GetByID(ctx, jobID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, service.ErrSyncJobNotFound
	}
	return job, err
}

// GetStoreStatus 店铺最近一次同步任务与 last_synced_at
func (tm *TaskManager) GetStoreStatus(ctx context.Context, store *model.Store) (*dto.SyncStatusResponse, error) {
	latest, err := tm.jobRepo.LatestByStore(ctx, store.ID)
	if err != nil {
		return nil, err
	}
	resp := &dto.SyncStatusResponse{
		StoreID:      store.ID,
		LastSyncedAt: store.LastSyncedAt,
	}
	if latest != nil {
		resp.Syncing = latest.IsActive()
		resp.LatestJob = ToJobInfo(latest)
	}
	return resp, nil
}

// ==================== 转换 ====================

func ToJobStats(job *model.SyncJob) *dto.SyncJobStats {
	return &dto.SyncJobStats{
		JobID:   job.ID,
		Entity:  job.Entity,
		Status:  job.Status,
		Total:   job.Total,
		Created: job.Created,
		Updated: job.Updated,
		Errors:  job.Errors,
	}
}

func ToJobInfo(job *model.SyncJob) *dto.SyncJobInfo {
	return &dto.SyncJobInfo{
		ID:         job.ID,
		StoreID:    job.StoreID,
		Entity:     job.Entity,
		Status:     job.Status,
		Trigger:    job.Trigger,
		Total:      job.Total,
		Created:    job.Created,
		Updated:    job.Updated,
		Errors:     job.Errors,
		Message:    job.Message,
		CreatedAt:  job.CreatedAt,
		StartedAt:  job.StartedAt,
		FinishedAt: job.FinishedAt,
	}
}

// ==================== 错误定义 ====================

var ErrTaskDisabled = apperr.Unavailable("sync runner is not accepting jobs")
