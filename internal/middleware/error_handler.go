package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shop_insight_v1/internal/apperr"
)

// ErrorHandler 统一把 c.Errors 渲染为 {status:"error", message, code}
// hideInternal 为 true 时 500 只返回通用文案
func ErrorHandler(logger *zap.Logger, hideInternal bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		appErr := apperr.From(c.Errors.Last().Err)
		message := appErr.Message
		if appErr.Status >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Error(c.Errors.Last().Err),
			)
			if !hideInternal && appErr.Err != nil {
				message = appErr.Err.Error()
			}
		}

		c.JSON(appErr.Status, gin.H{
			"status":  "error",
			"code":    appErr.Code,
			"message": message,
		})
	}
}

// Recovery panic 转为 500，交给 ErrorHandler 输出
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic recovered", zap.Any("panic", recovered), zap.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"code":    apperr.CodeInternal,
			"message": "internal server error",
		})
	})
}
