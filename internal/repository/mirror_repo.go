package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ==================== 镜像实体通用写入 ====================

// 更新路径永远不覆盖的列
var immutableColumns = map[string]bool{
	"id":          true,
	"store_id":    true,
	"external_id": true,
	"created_at":  true,
}

// upsertByID INSERT ... ON CONFLICT (id) DO UPDATE
// updateCols 为冲突时刷新的列，immutableColumns 中的列会被剔除
func upsertByID(ctx context.Context, db *gorm.DB, value interface{}, updateCols []string) error {
	cols := make([]string, 0, len(updateCols)+1)
	for _, c := range updateCols {
		if !immutableColumns[c] {
			cols = append(cols, c)
		}
	}
	cols = append(cols, "updated_at")

	return db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(cols),
		}).
		Create(value).Error
}

// insertIfMissing INSERT ... ON CONFLICT (id) DO NOTHING，已有行保持不变
func insertIfMissing(ctx context.Context, db *gorm.DB, value interface{}) error {
	return db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(value).Error
}

// existsByID 仅用于区分 created / updated 计数
func existsByID(ctx context.Context, db *gorm.DB, m interface{}, id string) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).Model(m).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
