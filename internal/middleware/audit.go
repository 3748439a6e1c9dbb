package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ==================== 审计上下文 ====================

type auditContextKey struct{}

// AuditInfo 操作人
type AuditInfo struct {
	UserID int64
	Email  string
}

func WithAuditInfo(ctx context.Context, userID int64, email string) context.Context {
	return context.WithValue(ctx, auditContextKey{}, &AuditInfo{UserID: userID, Email: email})
}

func GetAuditInfo(ctx context.Context) *AuditInfo {
	if info, ok := ctx.Value(auditContextKey{}).(*AuditInfo); ok {
		return info
	}
	return nil
}

// AuditContext 把 JWT 中的用户写入 request context，供 GORM 回调读取
func AuditContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := GetUserID(c); userID > 0 {
			ctx := WithAuditInfo(c.Request.Context(), userID, GetUserEmail(c))
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

// ==================== GORM 回调 ====================

// RegisterAuditCallbacks 对指定表的增删改记录审计日志
// 只记录带操作人的语句，同步任务写入的镜像数据不会出现在审计日志里
func RegisterAuditCallbacks(db *gorm.DB, logger *zap.Logger, tables ...string) error {
	watched := make(map[string]bool, len(tables))
	for _, t := range tables {
		watched[t] = true
	}
	log := logger.Named("audit")

	hook := func(action string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			if tx.Error != nil || tx.Statement.Context == nil || !watched[tx.Statement.Table] {
				return
			}
			info := GetAuditInfo(tx.Statement.Context)
			if info == nil {
				return
			}
			log.Info("data changed",
				zap.String("action", action),
				zap.String("table", tx.Statement.Table),
				zap.Int64("rows", tx.RowsAffected),
				zap.Int64("actor_id", info.UserID),
				zap.String("actor_email", info.Email),
			)
		}
	}

	if err := db.Callback().Create().After("gorm:create").Register("audit:create", hook("create")); err != nil {
		return err
	}
	if err := db.Callback().Update().After("gorm:update").Register("audit:update", hook("update")); err != nil {
		return err
	}
	return db.Callback().Delete().After("gorm:delete").Register("audit:delete", hook("delete"))
}
