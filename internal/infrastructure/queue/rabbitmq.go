package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xiebiao/bookcatalog/internal/domain/recalc"
	"github.com/xiebiao/bookcatalog/pkg/metrics"
	"github.com/xiebiao/bookcatalog/pkg/mq"
	"github.com/xiebiao/bookcatalog/pkg/tracing"
)

const (
	// RoutingKey 重算任务在Exchange上的路由键
	RoutingKey = "recalc"

	headerAttempt = "x-attempt"
	headerError   = "x-last-error"
)

// Publisher 队列使用的发布能力，由*mq.Publisher实现
type Publisher interface {
	DeclareQueue(name, routingKey string, args amqp.Table) error
	Publish(ctx context.Context, routingKey string, msg mq.Message) error
	PublishToQueue(ctx context.Context, queue string, msg mq.Message) error
}

// RabbitMQ 基于RabbitMQ的任务队列
//
// 拓扑：
//
//	exchange --recalc--> <queue>            worker消费
//	<queue>.retry  消息按TTL过期后经死信路由回 <queue>
//	<queue>.dead   超过最大次数或无法解析的消息
//
// 延迟队列使用单条消息TTL：同一队列中只有队头过期才会投递，
// 较短的延迟可能被排在前面的较长延迟推迟，重试时间只会更晚不会更早。
type RabbitMQ struct {
	publisher Publisher
	queue     string
	policy    RetryPolicy
	logger    *slog.Logger
}

// NewRabbitMQ 声明队列拓扑并返回队列
func NewRabbitMQ(publisher Publisher, queue string, policy RetryPolicy, logger *slog.Logger) (*RabbitMQ, error) {
	q := &RabbitMQ{
		publisher: publisher,
		queue:     queue,
		policy:    policy.normalized(),
		logger:    logger,
	}

	if err := publisher.DeclareQueue(queue, RoutingKey, nil); err != nil {
		return nil, err
	}
	if err := publisher.DeclareQueue(q.RetryQueue(), "", amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": queue,
	}); err != nil {
		return nil, err
	}
	if err := publisher.DeclareQueue(q.DeadQueue(), "", nil); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *RabbitMQ) RetryQueue() string { return q.queue + ".retry" }
func (q *RabbitMQ) DeadQueue() string  { return q.queue + ".dead" }

// Enqueue 发布任务
func (q *RabbitMQ) Enqueue(ctx context.Context, job recalc.Job) error {
	body, err := recalc.Encode(job)
	if err != nil {
		return fmt.Errorf("序列化任务失败: %w", err)
	}

	headers := map[string]string{}
	tracing.Inject(ctx, headers)

	return q.publisher.Publish(ctx, RoutingKey, mq.Message{
		Body:    body,
		Headers: toTable(headers, 1),
	})
}

// Handler 把recalc.Handler适配为消息处理函数
// 任务失败时重新发布到延迟队列并ACK原消息；只有重新发布失败才返回error（原消息重新入队）
// 任务被延后（recalc.DeferredError）时同样进入延迟队列，但不增加执行次数
func (q *RabbitMQ) Handler(handler recalc.Handler) mq.Handler {
	return func(ctx context.Context, d amqp.Delivery) error {
		job, err := recalc.Decode(d.Body)
		if err != nil {
			q.logger.ErrorContext(ctx, "无法解析的任务消息，转入死信队列", "error", err)
			return q.bury(ctx, d, "unknown", err)
		}

		attempt := attemptOf(d.Headers)
		jobCtx := tracing.Extract(ctx, fromTable(d.Headers))

		err = handler.Run(jobCtx, job)
		if err == nil {
			return nil
		}

		if deferred, ok := recalc.AsDeferred(err); ok {
			if perr := q.retry(ctx, d, attempt, deferred.After, err); perr != nil {
				return perr
			}
			q.logger.InfoContext(jobCtx, "重算任务延后执行",
				"job", job.String(), "attempt", attempt, "retry_in", deferred.After, "error", err)
			return nil
		}

		if IsPermanent(err) || attempt >= q.policy.MaxAttempts {
			q.logger.ErrorContext(jobCtx, "重算任务放弃", "job", job.String(), "attempts", attempt, "error", err)
			return q.bury(ctx, d, job.Name, err)
		}

		delay := q.policy.Delay(attempt)
		if perr := q.retry(ctx, d, attempt+1, delay, err); perr != nil {
			return perr
		}

		metrics.RecordRetry(job.Name)
		q.logger.WarnContext(jobCtx, "重算任务失败，稍后重试",
			"job", job.String(), "attempt", attempt, "retry_in", delay, "error", err)
		return nil
	}
}

// retry 发布到延迟队列，过期后回到工作队列，attempt为下一次执行的次数
func (q *RabbitMQ) retry(ctx context.Context, d amqp.Delivery, attempt int, delay time.Duration, cause error) error {
	headers := toTable(fromTable(d.Headers), attempt)
	headers[headerError] = cause.Error()

	ms := delay.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return q.publisher.PublishToQueue(ctx, q.RetryQueue(), mq.Message{
		Body:       d.Body,
		Headers:    headers,
		Expiration: strconv.FormatInt(ms, 10),
	})
}

func (q *RabbitMQ) bury(ctx context.Context, d amqp.Delivery, jobName string, cause error) error {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[headerError] = cause.Error()

	if err := q.publisher.PublishToQueue(ctx, q.DeadQueue(), mq.Message{Body: d.Body, Headers: headers}); err != nil {
		return err
	}
	metrics.RecordDead(jobName)
	return nil
}

// attemptOf 读取消息头中的执行次数，缺失时视为第1次
func attemptOf(headers amqp.Table) int {
	switch v := headers[headerAttempt].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case int16:
		return int(v)
	case int8:
		return int(v)
	case uint8:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 1
}

func toTable(trace map[string]string, attempt int) amqp.Table {
	t := amqp.Table{headerAttempt: int32(attempt)}
	for k, v := range trace {
		t[k] = v
	}
	return t
}

// fromTable 取出字符串类型的消息头（Trace Context）
func fromTable(t amqp.Table) map[string]string {
	out := make(map[string]string, len(t))
	for k, v := range t {
		if k == headerAttempt || k == headerError {
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
