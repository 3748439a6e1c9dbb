package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shop_insight_v1/internal/apperr"
	"shop_insight_v1/internal/model"
	"shop_insight_v1/internal/repository"
	"shop_insight_v1/internal/service"
	"shop_insight_v1/pkg/metrics"
)

// ==================== SyncJobRunner 同步任务执行器 ====================

// StoreSyncer 执行一次店铺同步
type StoreSyncer interface {
	SyncStore(ctx context.Context, store *model.Store, entity string) (*service.SyncResult, error)
}

// FinishHook 任务结束后的回调（如清理分析缓存）
type FinishHook func(ctx context.Context, storeID int64)

var ErrQueueFull = apperr.TooManyRequests("sync queue is full, try again later")

const interruptedMessage = "interrupted by restart"

// RunnerConfig 执行器参数
type RunnerConfig struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
}

// SyncJobRunner 固定数量的 worker 消费有界队列
// 同一店铺同时最多一个排队或运行中的任务
type SyncJobRunner struct {
	syncer    StoreSyncer
	storeRepo repository.StoreRepository
	jobRepo   repository.SyncJobRepository
	hooks     []FinishHook
	logger    *zap.Logger

	workers int
	timeout time.Duration
	queue   chan string

	mu     sync.Mutex // 保护 去重检查 + 入队
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSyncJobRunner(
	syncer StoreSyncer,
	storeRepo repository.StoreRepository,
	jobRepo repository.SyncJobRepository,
	cfg RunnerConfig,
	logger *zap.Logger,
) *SyncJobRunner {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SyncJobRunner{
		syncer:    syncer,
		storeRepo: storeRepo,
		jobRepo:   jobRepo,
		logger:    logger.Named("sync_runner"),
		workers:   cfg.Workers,
		timeout:   cfg.JobTimeout,
		queue:     make(chan string, cfg.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// OnFinish 注册任务结束回调，须在 Start 之前调用
func (r *SyncJobRunner) OnFinish(hook FinishHook) {
	r.hooks = append(r.hooks, hook)
}

// ==================== 生命周期 ====================

// Start 先把上次进程遗留的任务标记为失败，再启动 worker
func (r *SyncJobRunner) Start(ctx context.Context) error {
	n, err := r.jobRepo.FailInterrupted(ctx, interruptedMessage)
	if err != nil {
		return fmt.Errorf("清理遗留同步任务失败: %w", err)
	}
	if n > 0 {
		r.logger.Warn("marked interrupted sync jobs as failed", zap.Int64("count", n))
	}

	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.work(i)
	}
	r.logger.Info("sync runner started", zap.Int("workers", r.workers), zap.Int("queue_size", cap(r.queue)))
	return nil
}

// Stop 取消运行中的任务并等待 worker 退出
// 队列中未执行的任务保持 queued，下次启动时标记为失败
func (r *SyncJobRunner) Stop() {
	r.cancel()
	r.wg.Wait()
	r.logger.Info("sync runner stopped")
}

// ==================== 入队 ====================

// Enqueue 创建并排队一个同步任务
// 店铺已有排队或运行中的任务时直接返回该任务，created=false
func (r *SyncJobRunner) Enqueue(ctx context.Context, store *model.Store, entity, trigger string) (job *model.SyncJob, created bool, err error) {
	if !service.ValidEntity(entity) {
		return nil, false, service.ErrInvalidSyncEntity
	}
	if r.ctx.Err() != nil {
		return nil, false, ErrTaskDisabled
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	active, err := r.jobRepo.ActiveByStore(ctx, store.ID)
	if err != nil {
		return nil, false, err
	}
	if active != nil {
		return active, false, nil
	}

	job = &model.SyncJob{
		ID:      uuid.NewString(),
		StoreID: store.ID,
		Entity:  entity,
		Status:  model.SyncStatusQueued,
		Trigger: trigger,
	}
	if err := r.jobRepo.Create(ctx, job); err != nil {
		return nil, false, fmt.Errorf("创建同步任务失败: %w", err)
	}

	select {
	case r.queue <- job.ID:
	default:
		now := time.Now()
		job.Status = model.SyncStatusFailed
		job.Message = "queue full"
		job.FinishedAt = &now
		if err := r.jobRepo.Update(context.WithoutCancel(ctx), job); err != nil {
			r.logger.Error("save rejected job failed", zap.String("job_id", job.ID), zap.Error(err))
		}
		return nil, false, ErrQueueFull
	}
	metrics.SetSyncQueueDepth(len(r.queue))

	r.logger.Info("sync job queued",
		zap.String("job_id", job.ID),
		zap.Int64("store_id", store.ID),
		zap.String("entity", entity),
		zap.String("trigger", trigger),
	)
	return job, true, nil
}

// ==================== 执行 ====================

func (r *SyncJobRunner) work(id int) {
	defer r.wg.Done()
	log := r.logger.With(zap.Int("worker", id))
	for {
		select {
		case <-r.ctx.Done():
			return
		case jobID := <-r.queue:
			metrics.SetSyncQueueDepth(len(r.queue))
			r.run(jobID, log)
		}
	}
}

func (r *SyncJobRunner) run(jobID string, log *zap.Logger) {
	// 状态写入不受任务超时影响
	saveCtx := context.WithoutCancel(r.ctx)

	job, err := r.jobRepo.GetByID(saveCtx, jobID)
	if err != nil {
		log.Error("load sync job failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	log = log.With(zap.String("job_id", job.ID), zap.Int64("store_id", job.StoreID), zap.String("entity", job.Entity))

	start := time.Now()
	job.Status = model.SyncStatusRunning
	job.StartedAt = &start
	if err := r.jobRepo.Update(saveCtx, job); err != nil {
		log.Error("mark job running failed", zap.Error(err))
	}

	result, runErr := r.execute(job)
	r.finish(saveCtx, job, result, runErr, time.Since(start), log)
}

// execute 带超时执行同步，panic 转为错误
func (r *SyncJobRunner) execute(job *model.SyncJob) (result *service.SyncResult, err error) {
	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("sync panicked: %v", p)
		}
	}()

	store, err := r.storeRepo.GetByID(ctx, job.StoreID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New("store no longer exists")
	}
	if err != nil {
		return nil, err
	}
	return r.syncer.SyncStore(ctx, store, job.Entity)
}

func (r *SyncJobRunner) finish(ctx context.Context, job *model.SyncJob, result *service.SyncResult, runErr error, dur time.Duration, log *zap.Logger) {
	now := time.Now()
	job.FinishedAt = &now

	if result != nil {
		job.Total = result.Combined.Total
		job.Created = result.Combined.Created
		job.Updated = result.Combined.Updated
		job.Errors = result.Combined.Errors
	}

	switch {
	case runErr != nil:
		// 超时 / 取消 / panic 一律失败
		job.Status = model.SyncStatusFailed
		job.Message = runErr.Error()
	default:
		job.Status = result.Status()
		if result.Combined.Aborted {
			job.Message = "some entity streams were aborted after repeated page failures"
		}
	}

	if err := r.jobRepo.Update(ctx, job); err != nil {
		log.Error("save finished job failed", zap.Error(err))
	}
	metrics.ObserveSyncJob(job.Entity, job.Status, dur)

	if result != nil {
		for _, hook := range r.hooks {
			hook(ctx, job.StoreID)
		}
	}

	log.Info("sync job finished",
		zap.String("status", job.Status),
		zap.Int("total", job.Total),
		zap.Int("created", job.Created),
		zap.Int("updated", job.Updated),
		zap.Int("errors", job.Errors),
		zap.Duration("duration", dur),
	)
}
