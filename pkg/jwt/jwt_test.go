package jwt

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/xiebiao/bookcatalog/pkg/errors"
)

func TestGenerateAndParse(t *testing.T) {
	m := NewManager("test-secret", time.Hour, 24*time.Hour)

	pair, err := m.GenerateToken(Identity{UserID: 7, Email: "staff@example.com", IsStaff: true})
	if err != nil {
		t.Fatalf("生成Token失败: %v", err)
	}

	claims, err := m.ParseAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("解析Access Token失败: %v", err)
	}
	if claims.UserID != 7 || !claims.IsStaff {
		t.Errorf("Claims不正确: %+v", claims)
	}
	if claims.ID == "" {
		t.Error("jti不能为空")
	}
	if pair.ExpiresIn != 3600 {
		t.Errorf("期望ExpiresIn=3600, 实际=%d", pair.ExpiresIn)
	}
}

func TestRefreshTokenCannotAuthenticate(t *testing.T) {
	m := NewManager("test-secret", time.Hour, 24*time.Hour)
	pair, _ := m.GenerateToken(Identity{UserID: 1})

	if _, err := m.ParseAccessToken(pair.RefreshToken); !errors.Is(err, apperrors.ErrInvalidToken) {
		t.Errorf("Refresh Token不应通过鉴权, 实际错误: %v", err)
	}
}

func TestRefresh(t *testing.T) {
	m := NewManager("test-secret", time.Hour, 24*time.Hour)
	pair, _ := m.GenerateToken(Identity{UserID: 3})

	// 刷新时以最新的用户信息为准
	next, err := m.Refresh(pair.RefreshToken, func(id uint) (Identity, error) {
		return Identity{UserID: id, Email: "a@b.com", IsStaff: true}, nil
	})
	if err != nil {
		t.Fatalf("刷新失败: %v", err)
	}
	claims, err := m.ParseAccessToken(next.AccessToken)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if !claims.IsStaff || claims.Email != "a@b.com" {
		t.Errorf("刷新后的Claims不正确: %+v", claims)
	}

	if _, err := m.Refresh(pair.AccessToken, nil); !errors.Is(err, apperrors.ErrInvalidToken) {
		t.Errorf("Access Token不能用于刷新, 实际错误: %v", err)
	}
}

func TestExpiredToken(t *testing.T) {
	m := NewManager("test-secret", time.Minute, time.Hour)
	issued := time.Now().Add(-2 * time.Minute)
	m.now = func() time.Time { return issued }
	pair, _ := m.GenerateToken(Identity{UserID: 1})

	m.now = time.Now
	if _, err := m.ParseToken(pair.AccessToken); !errors.Is(err, apperrors.ErrTokenExpired) {
		t.Errorf("期望ErrTokenExpired, 实际: %v", err)
	}
}

func TestWrongSecret(t *testing.T) {
	pair, _ := NewManager("secret-a", time.Hour, time.Hour).GenerateToken(Identity{UserID: 1})
	if _, err := NewManager("secret-b", time.Hour, time.Hour).ParseToken(pair.AccessToken); !errors.Is(err, apperrors.ErrInvalidToken) {
		t.Errorf("期望ErrInvalidToken, 实际: %v", err)
	}
}

func TestRemaining(t *testing.T) {
	m := NewManager("s", time.Hour, time.Hour)
	pair, _ := m.GenerateToken(Identity{UserID: 1})
	claims, _ := m.ParseToken(pair.AccessToken)
	if r := m.Remaining(claims); r <= 59*time.Minute || r > time.Hour {
		t.Errorf("剩余有效期不正确: %v", r)
	}
}
