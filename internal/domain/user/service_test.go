package user

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/xiebiao/bookcatalog/pkg/errors"
)

type fakeRepo struct {
	byEmail map[string]*User
	nextID  uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byEmail: map[string]*User{}}
}

func (r *fakeRepo) Create(_ context.Context, u *User) error {
	if _, ok := r.byEmail[u.Email]; ok {
		return apperrors.ErrEmailDuplicate
	}
	r.nextID++
	u.ID = r.nextID
	r.byEmail[u.Email] = u
	return nil
}

func (r *fakeRepo) FindByID(_ context.Context, id uint) (*User, error) {
	for _, u := range r.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (r *fakeRepo) FindByEmail(_ context.Context, email string) (*User, error) {
	if u, ok := r.byEmail[email]; ok {
		return u, nil
	}
	return nil, apperrors.ErrUserNotFound
}

func newTestService() Service {
	staff := func(email string) bool { return strings.HasSuffix(email, "@staff.example.com") }
	return NewService(newFakeRepo(), staff, WithBcryptCost(bcrypt.MinCost))
}

func TestRegister_StaffPolicy(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	admin, err := svc.Register(ctx, "ops@staff.example.com", "secret123", "运营")
	require.NoError(t, err)
	assert.True(t, admin.IsStaff)

	reader, err := svc.Register(ctx, "reader@example.com", "secret123", "读者")
	require.NoError(t, err)
	assert.False(t, reader.IsStaff)
	assert.NotEqual(t, "secret123", reader.Password, "密码应以哈希形式存储")
}

func TestRegister_Validation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "not-an-email", "secret123", "读者")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidParams))

	_, err = svc.Register(ctx, "a@example.com", "short1", "读者")
	assert.ErrorIs(t, err, apperrors.ErrWeakPassword)

	_, err = svc.Register(ctx, "a@example.com", "onlyletters", "读者")
	assert.ErrorIs(t, err, apperrors.ErrWeakPassword)

	_, err = svc.Register(ctx, "a@example.com", "secret123", "读")
	assert.Error(t, err)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@example.com", "secret123", "读者")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "a@example.com", "secret456", "读者二")
	assert.ErrorIs(t, err, apperrors.ErrEmailDuplicate)
}

func TestLogin(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	registered, err := svc.Register(ctx, "a@example.com", "secret123", "读者")
	require.NoError(t, err)

	u, err := svc.Login(ctx, "a@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, u.ID)

	_, err = svc.Login(ctx, "a@example.com", "wrong1234")
	assert.ErrorIs(t, err, apperrors.ErrInvalidPassword)

	_, err = svc.Login(ctx, "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}
