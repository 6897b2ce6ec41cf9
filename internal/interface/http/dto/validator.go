package dto

import (
	"encoding/json"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var registerOnce sync.Once

// RegisterValidators 向gin的validator注册自定义校验规则
// - decimal: 合法的十进制数
// - nonzero_decimal: 合法且不为0的十进制数(原价不能为0)
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("decimal", func(fl validator.FieldLevel) bool {
			_, err := decimal.NewFromString(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("nonzero_decimal", func(fl validator.FieldLevel) bool {
			d, err := decimal.NewFromString(fl.Field().String())
			return err == nil && !d.IsZero()
		})
	})
}

// parseNullDecimal 空指针表示未提供(NULL)
func parseNullDecimal(n *json.Number) (decimal.NullDecimal, error) {
	if n == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

// TimeLayout 响应中的时间格式
const TimeLayout = "2006-01-02 15:04:05"
