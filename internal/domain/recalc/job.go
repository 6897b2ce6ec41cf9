// Package recalc 派生字段重算任务的领域定义
//
// 任务本身只携带ID，执行时总是从存储读取当前输入重新计算，
// 因此重复投递、乱序执行都是安全的。
package recalc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// 任务名称
const (
	JobRecomputeBook     = "recalc.book"            // 重算图书折扣与售价
	JobFanOutCategories  = "recalc.book_categories" // 图书重算完成后扇出到其所属分类
	JobRecomputeCategory = "recalc.category"        // 重算分类数量与平均售价
)

// Job 一个异步重算任务
// Link为成功后需要继续投递的任务（链式任务）
type Job struct {
	Name        string `json:"name"`
	BookID      uint   `json:"book_id,omitempty"`
	CategoryID  uint   `json:"category_id,omitempty"`
	CategoryIDs []uint `json:"category_ids,omitempty"`
	Link        *Job   `json:"link,omitempty"`
}

// NewBookJob 重算图书，并在成功后扇出到categoryIDs与图书当前所属分类
func NewBookJob(bookID uint, categoryIDs []uint) Job {
	fanOut := NewFanOutJob(bookID, categoryIDs)
	return Job{
		Name:   JobRecomputeBook,
		BookID: bookID,
		Link:   &fanOut,
	}
}

// NewFanOutJob 为图书的分类集合投递分类重算任务
func NewFanOutJob(bookID uint, categoryIDs []uint) Job {
	return Job{
		Name:        JobFanOutCategories,
		BookID:      bookID,
		CategoryIDs: append([]uint(nil), categoryIDs...),
	}
}

// NewCategoryJob 重算单个分类
func NewCategoryJob(categoryID uint) Job {
	return Job{
		Name:       JobRecomputeCategory,
		CategoryID: categoryID,
	}
}

// Validate 校验任务参数（消息解码后调用）
func (j Job) Validate() error {
	switch j.Name {
	case JobRecomputeBook, JobFanOutCategories:
		if j.BookID == 0 {
			return fmt.Errorf("任务 %s 缺少book_id", j.Name)
		}
	case JobRecomputeCategory:
		if j.CategoryID == 0 {
			return fmt.Errorf("任务 %s 缺少category_id", j.Name)
		}
	default:
		return fmt.Errorf("未知任务: %q", j.Name)
	}
	if j.Link != nil {
		return j.Link.Validate()
	}
	return nil
}

// DedupKey 任务合并键，只有分类重算任务可以合并
// 图书任务携带了捕获的分类集合，不能合并
func (j Job) DedupKey() (string, bool) {
	if j.Name != JobRecomputeCategory {
		return "", false
	}
	return CategoryDedupKey(j.CategoryID), true
}

// CategoryDedupKey 分类重算任务的合并键
func CategoryDedupKey(categoryID uint) string {
	return "recalc:pending:category:" + strconv.FormatUint(uint64(categoryID), 10)
}

// String 日志输出用
func (j Job) String() string {
	switch j.Name {
	case JobRecomputeCategory:
		return fmt.Sprintf("%s(category=%d)", j.Name, j.CategoryID)
	case JobFanOutCategories:
		return fmt.Sprintf("%s(book=%d, categories=%v)", j.Name, j.BookID, j.CategoryIDs)
	default:
		return fmt.Sprintf("%s(book=%d)", j.Name, j.BookID)
	}
}

// Encode 序列化为消息体
func Encode(j Job) ([]byte, error) {
	return json.Marshal(j)
}

// Decode 解析消息体并校验
func Decode(body []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(body, &j); err != nil {
		return Job{}, fmt.Errorf("解析任务失败: %w", err)
	}
	if err := j.Validate(); err != nil {
		return Job{}, err
	}
	return j, nil
}

// Queue 异步任务运行时
// 实现需保证至少一次投递，失败的任务按退避策略重试
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
}

// Handler 任务执行者
// 返回error表示任务失败，需要由运行时重试
type Handler interface {
	Run(ctx context.Context, job Job) error
}

// DeferredError 任务暂时不能执行（如存储熔断中）
// 运行时应在After之后重新执行，且不计入失败次数
type DeferredError struct {
	After time.Duration
	Err   error
}

func (e *DeferredError) Error() string {
	return fmt.Sprintf("任务延后%s执行: %v", e.After, e.Err)
}

func (e *DeferredError) Unwrap() error { return e.Err }

// Defer 包装为DeferredError
func Defer(err error, after time.Duration) error {
	return &DeferredError{After: after, Err: err}
}

// AsDeferred 判断err是否要求延后执行
func AsDeferred(err error) (*DeferredError, bool) {
	var d *DeferredError
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// HandlerFunc 函数适配器
type HandlerFunc func(ctx context.Context, job Job) error

func (f HandlerFunc) Run(ctx context.Context, job Job) error {
	return f(ctx, job)
}

// Deduper 待执行任务登记
// Claim返回true表示登记成功（此前没有相同的待执行任务）
type Deduper interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}
