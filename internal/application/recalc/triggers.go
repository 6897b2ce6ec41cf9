package recalc

import (
	"context"
	"log/slog"

	domain "github.com/xiebiao/bookcatalog/internal/domain/recalc"
)

// Triggers 实体变更到重算任务的映射
// 在写入提交后由领域服务调用；只投递任务，不等待执行，也不向调用方返回错误
// 实现book.ChangeListener、category.ChangeListener、discountgroup.ChangeListener
type Triggers struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewTriggers(dispatcher *Dispatcher, logger *slog.Logger) *Triggers {
	return &Triggers{dispatcher: dispatcher, logger: logger}
}

// OnBookChanged 图书创建或更新：重算图书，完成后扇出到分类
func (t *Triggers) OnBookChanged(ctx context.Context, bookID uint, categoryIDs []uint) {
	t.dispatch(ctx, domain.NewBookJob(bookID, categoryIDs))
}

// OnBookDeleted 图书删除：重算删除前所属的分类
func (t *Triggers) OnBookDeleted(ctx context.Context, bookID uint, categoryIDs []uint) {
	t.dispatch(ctx, domain.NewFanOutJob(bookID, categoryIDs))
}

// OnCategoryChanged 分类更新：重算该分类
func (t *Triggers) OnCategoryChanged(ctx context.Context, categoryID uint) {
	t.dispatch(ctx, domain.NewCategoryJob(categoryID))
}

// OnDiscountGroupChanged 折扣组更新或删除：重算每本引用它的图书
func (t *Triggers) OnDiscountGroupChanged(ctx context.Context, groupID uint, bookIDs []uint) {
	t.logger.InfoContext(ctx, "折扣组变更，重算关联图书", "discount_group_id", groupID, "books", len(bookIDs))
	for _, id := range bookIDs {
		t.dispatch(ctx, domain.NewBookJob(id, nil))
	}
}

func (t *Triggers) dispatch(ctx context.Context, job domain.Job) {
	if err := t.dispatcher.Dispatch(ctx, job); err != nil {
		// 写入已经提交，这里只能记录；统计会在下一次相关变更时修正
		t.logger.ErrorContext(ctx, "投递重算任务失败", "job", job.String(), "error", err)
	}
}
