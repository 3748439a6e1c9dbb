package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"shop_insight_v1/internal/model"
)

// SyncJobRepository 同步任务记录仓储
type SyncJobRepository interface {
	Create(ctx context.Context, job *model.SyncJob) error
	// Update 只更新已有记录；记录已随店铺删除时不会重新插入
	Update(ctx context.Context, job *model.SyncJob) error
	GetByID(ctx context.Context, id string) (*model.SyncJob, error)
	// LatestByStore 无记录时返回 nil, nil
	LatestByStore(ctx context.Context, storeID int64) (*model.SyncJob, error)
	// ActiveByStore 返回排队中或运行中的任务，无则 nil, nil
	ActiveByStore(ctx context.Context, storeID int64) (*model.SyncJob, error)
	// FailInterrupted 进程重启后把遗留的 queued/running 任务标记为失败
	FailInterrupted(ctx context.Context, message string) (int64, error)
}

type syncJobRepo struct {
	db *gorm.DB
}

func NewSyncJobRepository(db *gorm.DB) SyncJobRepository {
	return &syncJobRepo{db: db}
}

func (r *syncJobRepo) Create(ctx context.Context, job *model.SyncJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

var syncJobUpdateColumns = []string{
	"status", "message", "total", "created", "updated", "errors", "started_at", "finished_at",
}

func (r *syncJobRepo) Update(ctx context.Context, job *model.SyncJob) error {
	return r.db.WithContext(ctx).
		Model(&model.SyncJob{ID: job.ID}).
		Select(syncJobUpdateColumns).
		Updates(job).Error
}

func (r *syncJobRepo) GetByID(ctx context.Context, id string) (*model.SyncJob, error) {
	var job model.SyncJob
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *syncJobRepo) LatestByStore(ctx context.Context, storeID int64) (*model.SyncJob, error) {
	return r.first(ctx, r.db.WithContext(ctx).Where("store_id = ?", storeID))
}

func (r *syncJobRepo) ActiveByStore(ctx context.Context, storeID int64) (*model.SyncJob, error) {
	return r.first(ctx, r.db.WithContext(ctx).
		Where("store_id = ? AND status IN ?", storeID, []string{model.SyncStatusQueued, model.SyncStatusRunning}))
}

func (r *syncJobRepo) first(_ context.Context, query *gorm.DB) (*model.SyncJob, error) {
	var job model.SyncJob
	err := query.Order("created_at DESC").First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *syncJobRepo) FailInterrupted(ctx context.Context, message string) (int64, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&model.SyncJob{}).
		Where("status IN ?", []string{model.SyncStatusQueued, model.SyncStatusRunning}).
		Updates(map[string]interface{}{
			"status":      model.SyncStatusFailed,
			"message":     message,
			"finished_at": now,
		})
	return res.RowsAffected, res.Error
}
