package user

import (
	"context"
	"log/slog"
	"time"

	"github.com/xiebiao/bookcatalog/internal/domain/user"
	"github.com/xiebiao/bookcatalog/pkg/jwt"
)

// SessionStore 会话存储（Redis实现）
type SessionStore interface {
	SaveSession(ctx context.Context, userID uint, data map[string]interface{}, ttl time.Duration) error
	DeleteSession(ctx context.Context, userID uint) error
	AddToBlacklist(ctx context.Context, tokenID string, ttl time.Duration) error
}

// LoginUseCase 用户登录用例
// 1. 验证邮箱密码
// 2. 生成JWT Token对
// 3. 保存会话到Redis
type LoginUseCase struct {
	userService  user.Service
	jwtManager   *jwt.Manager
	sessionStore SessionStore
	sessionTTL   time.Duration
	logger       *slog.Logger
}

// NewLoginUseCase 创建登录用例，sessionTTL与Refresh Token有效期一致
func NewLoginUseCase(
	userService user.Service,
	jwtManager *jwt.Manager,
	sessionStore SessionStore,
	sessionTTL time.Duration,
	logger *slog.Logger,
) *LoginUseCase {
	return &LoginUseCase{
		userService:  userService,
		jwtManager:   jwtManager,
		sessionStore: sessionStore,
		sessionTTL:   sessionTTL,
		logger:       logger,
	}
}

// Execute 执行登录
func (uc *LoginUseCase) Execute(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	u, err := uc.userService.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	pair, err := uc.jwtManager.GenerateToken(identityOf(u))
	if err != nil {
		return nil, err
	}

	session := map[string]interface{}{
		"email":    u.Email,
		"is_staff": u.IsStaff,
		"login_at": time.Now().Unix(),
		"ip":       req.ClientIP,
	}
	// 会话保存失败不影响登录
	if err := uc.sessionStore.SaveSession(ctx, u.ID, session, uc.sessionTTL); err != nil {
		uc.logger.WarnContext(ctx, "保存会话失败", "user_id", u.ID, "error", err)
	}

	return &LoginResponse{
		User:         *toUserInfo(u),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	}, nil
}

// RefreshUseCase 刷新Token
// 用户信息以数据库为准：管理员权限被收回后，刷新得到的Token同样失去权限
type RefreshUseCase struct {
	userService user.Service
	jwtManager  *jwt.Manager
}

func NewRefreshUseCase(userService user.Service, jwtManager *jwt.Manager) *RefreshUseCase {
	return &RefreshUseCase{userService: userService, jwtManager: jwtManager}
}

func (uc *RefreshUseCase) Execute(ctx context.Context, refreshToken string) (*jwt.TokenPair, error) {
	return uc.jwtManager.Refresh(refreshToken, func(userID uint) (jwt.Identity, error) {
		u, err := uc.userService.GetByID(ctx, userID)
		if err != nil {
			return jwt.Identity{}, err
		}
		return identityOf(u), nil
	})
}

// LogoutUseCase 用户登出用例
type LogoutUseCase struct {
	sessionStore SessionStore
	jwtManager   *jwt.Manager
}

// NewLogoutUseCase 创建登出用例
func NewLogoutUseCase(sessionStore SessionStore, jwtManager *jwt.Manager) *LogoutUseCase {
	return &LogoutUseCase{sessionStore: sessionStore, jwtManager: jwtManager}
}

// Execute 删除会话，并将Access Token加入黑名单直到其自然过期
func (uc *LogoutUseCase) Execute(ctx context.Context, claims *jwt.Claims) error {
	if err := uc.sessionStore.DeleteSession(ctx, claims.UserID); err != nil {
		return err
	}
	return uc.sessionStore.AddToBlacklist(ctx, claims.ID, uc.jwtManager.Remaining(claims))
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string
	Password string
	ClientIP string
}

// LoginResponse 登录响应
type LoginResponse struct {
	User         UserInfo `json:"user"`
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int64    `json:"expires_in"` // Access Token过期时间（秒）
}

func identityOf(u *user.User) jwt.Identity {
	return jwt.Identity{UserID: u.ID, Email: u.Email, IsStaff: u.IsStaff}
}
