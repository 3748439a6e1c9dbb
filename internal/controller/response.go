package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"shop_insight_v1/internal/apperr"
)

// Response 成功响应外层 {status:"success", data}
type Response struct {
	Status string      `json:"status" example:"success"`
	Data   interface{} `json:"data,omitempty"`
}

// ErrorResponse 失败响应外层，由 ErrorHandler 中间件输出
type ErrorResponse struct {
	Status  string `json:"status" example:"error"`
	Code    string `json:"code" example:"VALIDATION_ERROR"`
	Message string `json:"message"`
}

func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Status: "success", Data: data})
}

func created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Status: "success", Data: data})
}

// fail 交给 ErrorHandler 渲染
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func bindFail(c *gin.Context, err error) {
	fail(c, apperr.BadRequest("invalid request: "+err.Error()))
}

// parseID 解析路径参数，失败时已写入错误
func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		fail(c, apperr.BadRequest("invalid "+name))
		return 0, false
	}
	return id, true
}
