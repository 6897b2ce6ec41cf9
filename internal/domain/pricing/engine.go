// Package pricing 图书实际售价与分类聚合统计的计算规则
//
// 纯函数，不做任何I/O。金额统一使用shopspring/decimal定点数，保留2位小数。
package pricing

import (
	"github.com/shopspring/decimal"
)

// 金额保留的小数位数
const Scale int32 = 2

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// Price 图书价格计算结果
type Price struct {
	DiscountTotal decimal.Decimal     // 总折扣（百分比，上限100）
	Price         decimal.NullDecimal // 实际售价，原价为空时为空
}

// CategoryStats 分类聚合统计
type CategoryStats struct {
	Count        int
	AveragePrice decimal.NullDecimal // 非空售价的平均值，全部为空时为空
}

// ComputePrice 计算总折扣与实际售价
// 规则：
// 1. discountTotal = min(discount + groupDiscount, 100)，为空的折扣按0处理
// 2. 原价为空 → 售价为空
// 3. price = priceOriginal * (100 - discountTotal) / 100，四舍五入到分
func ComputePrice(priceOriginal, discount, groupDiscount decimal.NullDecimal) Price {
	total := valueOrZero(discount).Add(valueOrZero(groupDiscount))
	if total.GreaterThan(hundred) {
		total = hundred
	}

	result := Price{DiscountTotal: total}
	if !priceOriginal.Valid {
		return result
	}

	p := priceOriginal.Decimal.Mul(hundred.Sub(total)).Div(hundred).Round(Scale)
	result.Price = decimal.NewNullDecimal(p)
	return result
}

// ComputeCategoryStats 计算分类下图书数量与平均售价
// 空售价计入数量，但不参与平均值
func ComputeCategoryStats(prices []decimal.NullDecimal) CategoryStats {
	stats := CategoryStats{Count: len(prices)}

	sum := zero
	priced := 0
	for _, p := range prices {
		if !p.Valid {
			continue
		}
		sum = sum.Add(p.Decimal)
		priced++
	}

	if priced > 0 {
		avg := sum.Div(decimal.NewFromInt(int64(priced))).Round(Scale)
		stats.AveragePrice = decimal.NewNullDecimal(avg)
	}
	return stats
}

func valueOrZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return zero
	}
	return d.Decimal
}

// ValidPercentage 折扣百分比是否在0-100之间
func ValidPercentage(d decimal.Decimal) bool {
	return !d.IsNegative() && !d.GreaterThan(hundred)
}
