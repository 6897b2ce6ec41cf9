package book

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiebiao/bookcatalog/internal/domain/pricing"
)

type memRepo struct {
	books  map[uint]*Book
	nextID uint
}

func newMemRepo() *memRepo { return &memRepo{books: map[uint]*Book{}} }

func (r *memRepo) Create(_ context.Context, b *Book) error {
	r.nextID++
	b.ID = r.nextID
	cp := *b
	r.books[b.ID] = &cp
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id uint) (*Book, error) {
	b, ok := r.books[id]
	if !ok {
		return nil, ErrBookNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *memRepo) FindByISBN(_ context.Context, isbn string) (*Book, error) {
	for _, b := range r.books {
		if b.ISBN == isbn {
			cp := *b
			return &cp, nil
		}
	}
	return nil, ErrBookNotFound
}

func (r *memRepo) Update(_ context.Context, b *Book) error {
	cp := *b
	r.books[b.ID] = &cp
	return nil
}

func (r *memRepo) Delete(_ context.Context, id uint) error {
	delete(r.books, id)
	return nil
}

func (r *memRepo) List(context.Context, ListParams) ([]*Book, int64, error) { return nil, 0, nil }
func (r *memRepo) FindIDsByDiscountGroup(context.Context, uint) ([]uint, error) {
	return nil, nil
}
func (r *memRepo) FindIDsByCategory(context.Context, uint) ([]uint, error) { return nil, nil }
func (r *memRepo) FindIDsByAuthor(_ context.Context, authorID uint) ([]uint, error) {
	var ids []uint
	for id := uint(1); id <= r.nextID; id++ {
		if b, ok := r.books[id]; ok && b.AuthorID == authorID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
func (r *memRepo) LoadPriceInputs(context.Context, uint) (PriceInputs, error) {
	return PriceInputs{}, nil
}
func (r *memRepo) SavePrice(context.Context, uint, pricing.Price) error { return nil }
func (r *memRepo) CategoryIDs(context.Context, uint) ([]uint, error)     { return nil, nil }

type inlineTx struct{ calls int }

func (t *inlineTx) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

type event struct {
	kind   string
	bookID uint
	cats   []uint
}

type recorder struct{ events []event }

func (r *recorder) OnBookChanged(_ context.Context, id uint, cats []uint) {
	r.events = append(r.events, event{"changed", id, cats})
}

func (r *recorder) OnBookDeleted(_ context.Context, id uint, cats []uint) {
	r.events = append(r.events, event{"deleted", id, cats})
}

func price(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func newService() (Service, *memRepo, *recorder, *inlineTx) {
	repo := newMemRepo()
	rec := &recorder{}
	tx := &inlineTx{}
	return NewService(repo, tx, rec), repo, rec, tx
}

func TestCreateBook_NotifiesWithCategories(t *testing.T) {
	svc, _, rec, _ := newService()

	b, err := svc.CreateBook(context.Background(), &Book{
		Title: "三体", AuthorID: 1, ISBN: "978-7-5366-9293-0", PriceOriginal: price("23.00"), CategoryIDs: []uint{1, 2},
	})
	require.NoError(t, err)
	require.Len(t, rec.events, 1)
	assert.Equal(t, event{"changed", b.ID, []uint{1, 2}}, rec.events[0])
}

func TestCreateBook_DeduplicatesCategories(t *testing.T) {
	svc, repo, rec, _ := newService()

	b, err := svc.CreateBook(context.Background(), &Book{
		Title: "球状闪电", AuthorID: 1, CategoryIDs: []uint{2, 1, 2, 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []uint{2, 1}, repo.books[b.ID].CategoryIDs)
	assert.Equal(t, event{"changed", b.ID, []uint{2, 1}}, rec.events[0])
}

func TestCreateBook_Validation(t *testing.T) {
	svc, _, rec, _ := newService()
	ctx := context.Background()

	cases := []struct {
		name string
		book *Book
		want error
	}{
		{"缺少书名", &Book{AuthorID: 1}, ErrTitleRequired},
		{"缺少作者", &Book{Title: "x"}, ErrAuthorRequired},
		{"原价为0", &Book{Title: "x", AuthorID: 1, PriceOriginal: price("0")}, ErrInvalidPrice},
		{"折扣超过100", &Book{Title: "x", AuthorID: 1, Discount: price("100.01")}, ErrInvalidDiscount},
		{"ISBN位数错误", &Book{Title: "x", AuthorID: 1, ISBN: "12345"}, ErrInvalidISBN},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateBook(ctx, tc.book)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Empty(t, rec.events, "校验失败不触发重算")
}

func TestCreateBook_DuplicateISBN(t *testing.T) {
	svc, _, _, _ := newService()
	ctx := context.Background()

	_, err := svc.CreateBook(ctx, &Book{Title: "a", AuthorID: 1, ISBN: "9787536692930"})
	require.NoError(t, err)
	_, err = svc.CreateBook(ctx, &Book{Title: "b", AuthorID: 1, ISBN: "9787536692930"})
	assert.ErrorIs(t, err, ErrISBNDuplicate)
}

func TestUpdateBook_KeepsDerivedFieldsAndUnionsCategories(t *testing.T) {
	svc, repo, rec, tx := newService()
	ctx := context.Background()

	b, err := svc.CreateBook(ctx, &Book{Title: "a", AuthorID: 1, ISBN: "9787536692930", PriceOriginal: price("100"), CategoryIDs: []uint{1, 2}})
	require.NoError(t, err)
	repo.books[b.ID].Price = price("90.00")
	repo.books[b.ID].DiscountTotal = decimal.NewFromInt(10)

	// 同一本书更新自身ISBN不算重复
	upd := &Book{ID: b.ID, Title: "a2", AuthorID: 1, ISBN: "9787536692930", PriceOriginal: price("200"), Price: price("1"), CategoryIDs: []uint{2, 3}}
	got, err := svc.UpdateBook(ctx, upd)
	require.NoError(t, err)

	assert.Equal(t, "90", got.Price.Decimal.String(), "派生字段不接受客户端写入")
	assert.Equal(t, 1, tx.calls)
	require.Len(t, rec.events, 2)
	assert.Equal(t, []uint{1, 2, 3}, rec.events[1].cats)
}

func TestUpdateBook_NotFound(t *testing.T) {
	svc, _, rec, _ := newService()
	_, err := svc.UpdateBook(context.Background(), &Book{ID: 42, Title: "x", AuthorID: 1})
	assert.ErrorIs(t, err, ErrBookNotFound)
	assert.Empty(t, rec.events)
}

func TestDeleteBook_CapturesCategoriesFirst(t *testing.T) {
	svc, repo, rec, _ := newService()
	ctx := context.Background()

	b, err := svc.CreateBook(ctx, &Book{Title: "a", AuthorID: 1, CategoryIDs: []uint{4, 5}})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteBook(ctx, b.ID))
	assert.NotContains(t, repo.books, b.ID)
	assert.Equal(t, event{"deleted", b.ID, []uint{4, 5}}, rec.events[len(rec.events)-1])
}

func TestDeleteByAuthor_NotifiesEachBook(t *testing.T) {
	svc, repo, rec, tx := newService()
	ctx := context.Background()

	a, err := svc.CreateBook(ctx, &Book{Title: "a", AuthorID: 7, CategoryIDs: []uint{1}})
	require.NoError(t, err)
	b, err := svc.CreateBook(ctx, &Book{Title: "b", AuthorID: 7, CategoryIDs: []uint{1, 2}})
	require.NoError(t, err)
	other, err := svc.CreateBook(ctx, &Book{Title: "c", AuthorID: 8, CategoryIDs: []uint{3}})
	require.NoError(t, err)
	rec.events = nil
	tx.calls = 0

	require.NoError(t, svc.DeleteByAuthor(ctx, 7))
	assert.Equal(t, 1, tx.calls)
	assert.NotContains(t, repo.books, a.ID)
	assert.NotContains(t, repo.books, b.ID)
	assert.Contains(t, repo.books, other.ID)
	assert.Equal(t, []event{
		{"deleted", a.ID, []uint{1}},
		{"deleted", b.ID, []uint{1, 2}},
	}, rec.events)
}

func TestUnionIDs(t *testing.T) {
	assert.Equal(t, []uint{1, 2, 3}, UnionIDs([]uint{1, 2}, []uint{2, 3}))
	assert.Empty(t, UnionIDs(nil, nil))
}
