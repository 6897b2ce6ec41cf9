package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xiebiao/bookcatalog/internal/domain/recalc"
	apperrors "github.com/xiebiao/bookcatalog/pkg/errors"
)

// Deduper 基于Redis的待执行任务登记
// API进程与worker进程共享同一登记表,分类重算任务在多个进程间合并
// Key设计：recalc:pending:category:{id}，值无意义，TTL兜底防止worker崩溃后永久占用
type Deduper struct {
	client redis.Cmdable
	ttl    time.Duration
}

var _ recalc.Deduper = (*Deduper)(nil)

// NewDeduper ttl<=0时不设置过期时间
func NewDeduper(client redis.Cmdable, ttl time.Duration) *Deduper {
	return &Deduper{client: client, ttl: ttl}
}

// Claim SET NX，返回true表示此前没有相同的待执行任务
func (d *Deduper) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		return false, apperrors.Wrap(err, "登记待执行任务失败")
	}
	return ok, nil
}

// Release 删除登记，不存在时视为成功
func (d *Deduper) Release(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, key).Err(); err != nil {
		return apperrors.Wrap(err, "释放待执行任务失败")
	}
	return nil
}
