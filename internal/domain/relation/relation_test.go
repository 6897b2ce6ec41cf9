package relation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/xiebiao/bookcatalog/pkg/errors"
)

type key struct {
	user, book uint
	t          Type
}

type fakeRepo struct {
	rows map[key]*Relation
}

func (f *fakeRepo) Upsert(_ context.Context, r *Relation) error {
	k := key{r.UserID, r.BookID, r.Type}
	if old, ok := f.rows[k]; ok {
		r.ID = old.ID
	} else {
		r.ID = uint(len(f.rows) + 1)
	}
	f.rows[k] = r
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, userID, bookID uint, t Type) error {
	k := key{userID, bookID, t}
	if _, ok := f.rows[k]; !ok {
		return ErrRelationNotFound
	}
	delete(f.rows, k)
	return nil
}

func (f *fakeRepo) List(_ context.Context, userID uint, t Type) ([]*Relation, error) {
	var out []*Relation
	for k, r := range f.rows {
		if (userID == 0 || k.user == userID) && (t == "" || k.t == t) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) BookIDsOf(_ context.Context, userID uint, t Type, bookIDs []uint) (map[uint]bool, error) {
	out := map[uint]bool{}
	for _, id := range bookIDs {
		if _, ok := f.rows[key{userID, id, t}]; ok {
			out[id] = true
		}
	}
	return out, nil
}

type books map[uint]bool

func (b books) Exists(_ context.Context, id uint) (bool, error) { return b[id], nil }

func newService() (*Service, *fakeRepo) {
	repo := &fakeRepo{rows: map[key]*Relation{}}
	return NewService(repo, books{1: true, 2: true}), repo
}

func TestAdd_IsIdempotent(t *testing.T) {
	svc, repo := newService()
	ctx := context.Background()

	_, err := svc.Add(ctx, 10, 1, TypeBookmark)
	require.NoError(t, err)
	_, err = svc.Add(ctx, 10, 1, TypeBookmark)
	require.NoError(t, err)
	assert.Len(t, repo.rows, 1)

	marked, err := svc.Bookmarked(ctx, 10, []uint{1, 2})
	require.NoError(t, err)
	assert.Equal(t, map[uint]bool{1: true}, marked)
}

func TestAdd_Rejects(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.Add(ctx, 10, 1, TypeRating)
	assert.ErrorIs(t, err, ErrInvalidType)

	_, err = svc.Add(ctx, 10, 99, TypeWishlist)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeBookNotFound))
}

func TestRate(t *testing.T) {
	svc, repo := newService()
	ctx := context.Background()

	_, err := svc.Rate(ctx, 10, 2, 5)
	assert.ErrorIs(t, err, ErrInvalidRating)
	_, err = svc.Rate(ctx, 10, 2, -1)
	assert.ErrorIs(t, err, ErrInvalidRating)

	_, err = svc.Rate(ctx, 10, 2, 3)
	require.NoError(t, err)
	_, err = svc.Rate(ctx, 10, 2, 0)
	require.NoError(t, err)

	require.Len(t, repo.rows, 1)
	assert.Equal(t, 0, *repo.rows[key{10, 2, TypeRating}].Value)
}

func TestRemoveAndList(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, _ = svc.Add(ctx, 10, 1, TypeWishlist)
	_, _ = svc.Add(ctx, 11, 1, TypeWishlist)

	all, err := svc.List(ctx, 0, TypeWishlist)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, svc.Remove(ctx, 10, 1, TypeWishlist))
	assert.ErrorIs(t, svc.Remove(ctx, 10, 1, TypeWishlist), ErrRelationNotFound)

	mine, err := svc.List(ctx, 10, "")
	require.NoError(t, err)
	assert.Empty(t, mine)

	_, err = svc.List(ctx, 10, "like")
	assert.ErrorIs(t, err, ErrInvalidType)
}
