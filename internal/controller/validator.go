package controller

import (
	"errors"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"shop_insight_v1/pkg/shopify"
)

// RegisterValidators 注册自定义 binding 标签，启动时调用一次
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected binding validator engine")
	}
	return v.RegisterValidation("shopdomain", func(fl validator.FieldLevel) bool {
		_, err := shopify.NormalizeDomain(fl.Field().String())
		return err == nil
	})
}
