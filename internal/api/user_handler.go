// Package api 提供HTTP API处理器实现。
// API层负责处理HTTP请求/响应，进行数据验证和格式转换。
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Lucassml-boop/commerce-e/internal/domain"
	"github.com/Lucassml-boop/commerce-e/internal/middleware"
	"github.com/Lucassml-boop/commerce-e/internal/resp"
	"github.com/Lucassml-boop/commerce-e/internal/service"
)

// UserHandler 用户相关的HTTP处理器。
type UserHandler struct {
	userService service.UserService
	jwtService  service.JWTService
	logger      *zap.Logger

	// onLogout 在用户登出时回调，用于清理购物车角标等会话态
	onLogout func(userID int64)
}

// NewUserHandler 创建用户处理器实例。
func NewUserHandler(userService service.UserService, jwtService service.JWTService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		jwtService:  jwtService,
		logger:      logger,
	}
}

// SetLogoutHook 注册登出回调。
func (h *UserHandler) SetLogoutHook(fn func(userID int64)) {
	h.onLogout = fn
}

// publicUser 对外暴露的用户视图，不含密码哈希。
type publicUser struct {
	ID        int64           `json:"id"`
	Username  string          `json:"username"`
	Email     string          `json:"email"`
	FullName  string          `json:"full_name,omitempty"`
	AvatarURL string          `json:"avatar_url,omitempty"`
	Role      domain.UserRole `json:"role"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func toPublicUser(u *domain.User) *publicUser {
	return &publicUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		AvatarURL: u.AvatarURL,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// decodeBody 解析 JSON 请求体，失败时写出 400 响应并返回 false。
func (h *UserHandler) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	reqID := middleware.RequestIDFromContext(r.Context())
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body",
			reqID, middleware.TraceIDFromContext(r.Context()))
		return false
	}
	return true
}

// Register 处理用户注册。
// POST /api/v1/auth/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	traceID := middleware.TraceIDFromContext(r.Context())

	var req domain.RegisterRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if err := validateRegisterRequest(&req); err != nil {
		h.logger.Warn("register validation failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, traceID)
		return
	}

	user, err := h.userService.Register(&req)
	if err != nil {
		if errors.Is(err, service.ErrUserExists) {
			resp.Error(w, http.StatusConflict, resp.CodeConflict, "username or email already exists", reqID, traceID)
			return
		}
		h.logger.Error("register failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "register failed", reqID, traceID)
		return
	}

	resp.OK(w, toPublicUser(user), reqID, traceID)
}

// Login 处理用户登录，登录标识可以是用户名或邮箱。
// POST /api/v1/auth/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	traceID := middleware.TraceIDFromContext(r.Context())

	var req domain.LoginRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if req.Username == "" || req.Password == "" {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "username and password are required", reqID, traceID)
		return
	}

	user, err := h.userService.Login(&req)
	if err != nil {
		switch {
		// 用户不存在和密码错误对外不做区分
		case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrInvalidCredentials):
			resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "invalid username or password", reqID, traceID)
		case errors.Is(err, service.ErrUserInactive):
			resp.Error(w, http.StatusForbidden, resp.CodeUnauthorized, "user is inactive", reqID, traceID)
		default:
			h.logger.Error("login failed", zap.String("request_id", reqID), zap.Error(err))
			resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "login failed", reqID, traceID)
		}
		return
	}

	tokenPair, err := h.jwtService.GenerateTokenPair(user)
	if err != nil {
		h.logger.Error("generate tokens failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "token generation failed", reqID, traceID)
		return
	}

	loginResp := &domain.LoginResponse{
		User: &domain.User{
			ID:        user.ID,
			Username:  user.Username,
			Email:     user.Email,
			Role:      user.Role,
			IsActive:  user.IsActive,
			CreatedAt: user.CreatedAt,
		},
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
	}
	resp.OK(w, loginResp, reqID, traceID)
}

// GetProfile 返回当前用户的最新资料。
// GET /api/v1/users/profile，AuthMiddleware 保护
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	traceID := middleware.TraceIDFromContext(r.Context())

	user := middleware.UserFromContext(r.Context())
	if user == nil {
		h.logger.Error("user not found in context", zap.String("request_id", reqID))
		resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "authentication required", reqID, traceID)
		return
	}

	// 令牌里的资料可能过期，以数据库为准
	fullUser, err := h.userService.GetUserByID(user.ID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "user not found", reqID, traceID)
			return
		}
		h.logger.Error("get profile failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "get profile failed", reqID, traceID)
		return
	}

	resp.OK(w, toPublicUser(fullUser), reqID, traceID)
}

// Logout 处理用户登出。
// JWT本身无状态，这里只负责清理服务端为该用户维护的会话态。
// POST /api/v1/auth/logout，AuthMiddleware 保护
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	traceID := middleware.TraceIDFromContext(r.Context())

	user := middleware.UserFromContext(r.Context())
	if user == nil {
		resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "authentication required", reqID, traceID)
		return
	}

	if h.onLogout != nil {
		h.onLogout(user.ID)
	}
	h.logger.Info("user logged out", zap.String("request_id", reqID), zap.Int64("user_id", user.ID))

	data := map[string]any{"logged_out": true}
	resp.OK(w, &data, reqID, traceID)
}

// RefreshToken 用刷新令牌换发新令牌对。
// POST /api/v1/auth/refresh
func (h *UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	traceID := middleware.TraceIDFromContext(r.Context())

	var req domain.RefreshTokenRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	tokenPair, err := h.jwtService.RefreshTokenPair(req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTokenExpired):
			resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "refresh token expired", reqID, traceID)
		case errors.Is(err, service.ErrInvalidToken):
			resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "invalid refresh token", reqID, traceID)
		default:
			h.logger.Error("refresh token failed", zap.String("request_id", reqID), zap.Error(err))
			resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "refresh token failed", reqID, traceID)
		}
		return
	}

	resp.OK(w, tokenPair, reqID, traceID)
}

func validateRegisterRequest(req *domain.RegisterRequest) error {
	if n := len(strings.TrimSpace(req.Username)); n < 3 || n > 32 {
		return errors.New("username must be between 3 and 32 characters")
	}
	// bcrypt 最多处理72字节
	if n := len(req.Password); n < 6 || n > 72 {
		return errors.New("password must be between 6 and 72 characters")
	}
	if !isValidEmail(strings.TrimSpace(req.Email)) {
		return errors.New("invalid email format")
	}
	return nil
}

// isValidEmail 粗粒度邮箱校验，唯一性和可达性由注册流程兜底。
func isValidEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	at := strings.IndexRune(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}
	return strings.ContainsRune(email[at+1:], '.')
}
