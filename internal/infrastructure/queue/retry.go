// Package queue 重算任务的运行时
//
//   - Memory：进程内队列 + worker池，单进程部署与测试使用
//   - RabbitMQ：持久化队列，API进程投递，cmd/worker消费
//
// 两者都保证至少一次执行，失败任务按指数退避重试，超过最大次数后放弃并记录。
package queue

import (
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy 重试策略
type RetryPolicy struct {
	MaxAttempts    int // 含首次执行
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy 默认重试策略
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = d.InitialBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	return p
}

// newBackOff 指数退避，不设总时长上限（由MaxAttempts限制）
func (p RetryPolicy) newBackOff(jitter bool) *backoff.ExponentialBackOff {
	p = p.normalized()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	b.MaxInterval = p.MaxBackoff
	b.MaxElapsedTime = 0
	if !jitter {
		b.RandomizationFactor = 0
	}
	b.Reset()
	return b
}

// Delay 第attempt次失败后（从1开始）下一次执行前的等待时间，不带随机抖动
func (p RetryPolicy) Delay(attempt int) time.Duration {
	b := p.newBackOff(false)
	d := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}

// IsPermanent 不应重试的错误（如消息无法解析）
func IsPermanent(err error) bool {
	var perm *backoff.PermanentError
	return errors.As(err, &perm)
}
