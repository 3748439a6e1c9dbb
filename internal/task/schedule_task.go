package task

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"shop_insight_v1/internal/model"
	"shop_insight_v1/internal/repository"
)

// ==================== ScheduleSyncTask 定时全量同步 ====================

// ScheduleSyncTask 按 cron 表达式（含秒）为所有店铺排队同步任务
type ScheduleSyncTask struct {
	storeRepo repository.StoreRepository
	runner    *SyncJobRunner
	spec      string
	cron      *cron.Cron
	logger    *zap.Logger
}

func NewScheduleSyncTask(storeRepo repository.StoreRepository, runner *SyncJobRunner, spec string, logger *zap.Logger) *ScheduleSyncTask {
	return &ScheduleSyncTask{
		storeRepo: storeRepo,
		runner:    runner,
		spec:      spec,
		cron:      cron.New(cron.WithSeconds()),
		logger:    logger.Named("schedule_sync"),
	}
}

// Start 表达式为空时不启用
func (t *ScheduleSyncTask) Start() error {
	if t.spec == "" {
		t.logger.Info("scheduled sync disabled")
		return nil
	}

	_, err := t.cron.AddFunc(t.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		t.EnqueueAll(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid sync schedule %q: %w", t.spec, err)
	}

	t.cron.Start()
	t.logger.Info("scheduled sync started", zap.String("spec", t.spec))
	return nil
}

func (t *ScheduleSyncTask) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
}

// EnqueueAll 为每个店铺排队全量同步，已有进行中任务的店铺跳过
func (t *ScheduleSyncTask) EnqueueAll(ctx context.Context) int {
	stores, err := t.storeRepo.ListAll(ctx)
	if err != nil {
		t.logger.Error("list stores failed", zap.Error(err))
		return 0
	}

	queued := 0
	for i := range stores {
		_, created, err := t.runner.Enqueue(ctx, &stores[i], model.SyncEntityAll, model.SyncTriggerSchedule)
		if err != nil {
			t.logger.Warn("enqueue scheduled sync failed", zap.Int64("store_id", stores[i].ID), zap.Error(err))
			continue
		}
		if created {
			queued++
		}
	}
	t.logger.Info("scheduled sync enqueued", zap.Int("stores", len(stores)), zap.Int("queued", queued))
	return queued
}
