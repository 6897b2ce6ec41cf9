package category

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiebiao/bookcatalog/internal/domain/pricing"
)

type memRepo struct {
	items map[uint]*Category
}

func (r *memRepo) Create(_ context.Context, c *Category) error {
	c.ID = uint(len(r.items) + 1)
	cp := *c
	r.items[c.ID] = &cp
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id uint) (*Category, error) {
	c, ok := r.items[id]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memRepo) Update(_ context.Context, c *Category) error {
	cp := *c
	r.items[c.ID] = &cp
	return nil
}

func (r *memRepo) Delete(_ context.Context, id uint) error {
	delete(r.items, id)
	return nil
}

func (r *memRepo) List(context.Context) ([]*Category, error) { return nil, nil }

func (r *memRepo) BookPrices(context.Context, uint) ([]decimal.NullDecimal, error) {
	return nil, nil
}

func (r *memRepo) SaveStats(context.Context, uint, pricing.CategoryStats) error { return nil }

type recorder struct{ ids []uint }

func (r *recorder) OnCategoryChanged(_ context.Context, id uint) { r.ids = append(r.ids, id) }

func TestService_UpdateTriggersRecompute(t *testing.T) {
	repo := &memRepo{items: map[uint]*Category{}}
	rec := &recorder{}
	svc := NewService(repo, rec)
	ctx := context.Background()

	c, err := svc.Create(ctx, &Category{Name: "科幻"})
	require.NoError(t, err)
	assert.Empty(t, rec.ids, "新分类没有图书,不需要重算")

	// 派生字段不能通过Update修改
	repo.items[c.ID].BookCount = 3
	got, err := svc.Update(ctx, &Category{ID: c.ID, Name: "硬科幻", BookCount: 99})
	require.NoError(t, err)
	assert.Equal(t, 3, got.BookCount)
	assert.Equal(t, []uint{c.ID}, rec.ids)

	require.NoError(t, svc.Delete(ctx, c.ID))
	assert.Len(t, rec.ids, 1, "删除分类不触发重算")

	_, err = svc.Update(ctx, &Category{ID: c.ID, Name: "x"})
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestService_NameRequired(t *testing.T) {
	svc := NewService(&memRepo{items: map[uint]*Category{}}, &recorder{})
	_, err := svc.Create(context.Background(), &Category{})
	assert.ErrorIs(t, err, ErrNameRequired)
}
