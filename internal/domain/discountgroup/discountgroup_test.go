package discountgroup

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	groups map[uint]*DiscountGroup
	refs   map[uint][]uint // group → books
}

func (r *memRepo) Create(_ context.Context, g *DiscountGroup) error {
	g.ID = uint(len(r.groups) + 1)
	r.groups[g.ID] = g
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id uint) (*DiscountGroup, error) {
	g, ok := r.groups[id]
	if !ok {
		return nil, ErrDiscountGroupNotFound
	}
	cp := *g
	return &cp, nil
}

func (r *memRepo) Update(_ context.Context, g *DiscountGroup) error {
	r.groups[g.ID] = g
	return nil
}

func (r *memRepo) Delete(_ context.Context, id uint) error {
	delete(r.groups, id)
	delete(r.refs, id)
	return nil
}

func (r *memRepo) List(context.Context) ([]*DiscountGroup, error) { return nil, nil }

func (r *memRepo) FindIDsByDiscountGroup(_ context.Context, id uint) ([]uint, error) {
	return r.refs[id], nil
}

type inlineTx struct{}

func (inlineTx) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recorder struct {
	groupID uint
	bookIDs []uint
	calls   int
}

func (r *recorder) OnDiscountGroupChanged(_ context.Context, groupID uint, bookIDs []uint) {
	r.calls++
	r.groupID, r.bookIDs = groupID, bookIDs
}

func setup() (*Service, *memRepo, *recorder) {
	repo := &memRepo{groups: map[uint]*DiscountGroup{}, refs: map[uint][]uint{}}
	rec := &recorder{}
	return NewService(repo, repo, inlineTx{}, rec), repo, rec
}

func TestUpdate_NotifiesReferencingBooks(t *testing.T) {
	svc, repo, rec := setup()
	ctx := context.Background()

	g, err := svc.Create(ctx, &DiscountGroup{Name: "会员", Discount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	assert.Zero(t, rec.calls, "新建折扣组不触发重算")

	repo.refs[g.ID] = []uint{1, 2, 3}
	_, err = svc.Update(ctx, &DiscountGroup{ID: g.ID, Name: "会员", Discount: decimal.NewFromInt(30)})
	require.NoError(t, err)

	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, []uint{1, 2, 3}, rec.bookIDs)
	assert.True(t, repo.groups[g.ID].Discount.Equal(decimal.NewFromInt(30)))
}

func TestDelete_CapturesBooksBeforeDelete(t *testing.T) {
	svc, repo, rec := setup()
	ctx := context.Background()

	g, err := svc.Create(ctx, &DiscountGroup{Name: "清仓", Discount: decimal.NewFromInt(50)})
	require.NoError(t, err)
	repo.refs[g.ID] = []uint{7}

	require.NoError(t, svc.Delete(ctx, g.ID))
	assert.Equal(t, []uint{7}, rec.bookIDs)
}

func TestValidate(t *testing.T) {
	svc, _, rec := setup()
	ctx := context.Background()

	_, err := svc.Create(ctx, &DiscountGroup{Discount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, ErrNameRequired)

	_, err = svc.Create(ctx, &DiscountGroup{Name: "x", Discount: decimal.NewFromInt(101)})
	assert.ErrorIs(t, err, ErrInvalidDiscount)

	_, err = svc.Update(ctx, &DiscountGroup{ID: 9, Name: "x", Discount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrDiscountGroupNotFound)
	assert.Zero(t, rec.calls)
}
