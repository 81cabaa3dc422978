package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/Lucassml-boop/commerce-e/internal/domain"
	"github.com/Lucassml-boop/commerce-e/internal/resp"
	"github.com/Lucassml-boop/commerce-e/internal/service"
)

// stubJWTService 按预置映射返回令牌校验结果。
type stubJWTService struct {
	access  map[string]*service.Claims
	refresh map[string]*service.Claims
	errs    map[string]error
}

func newStubJWTService() *stubJWTService {
	return &stubJWTService{
		access:  make(map[string]*service.Claims),
		refresh: make(map[string]*service.Claims),
		errs:    make(map[string]error),
	}
}

func (s *stubJWTService) addAccessToken(token string, user *domain.User) {
	s.access[token] = &service.Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		Type:     "access",
	}
}

func (s *stubJWTService) failToken(token string, err error) {
	s.errs[token] = err
}

func (s *stubJWTService) GenerateTokenPair(user *domain.User) (*service.TokenPair, error) {
	access := "access_" + user.Username
	refresh := "refresh_" + user.Username
	s.addAccessToken(access, user)
	s.refresh[refresh] = &service.Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		Type:     "refresh",
	}
	return &service.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *stubJWTService) ValidateAccessToken(token string) (*service.Claims, error) {
	if err, ok := s.errs[token]; ok {
		return nil, err
	}
	if claims, ok := s.access[token]; ok {
		return claims, nil
	}
	return nil, service.ErrInvalidToken
}

func (s *stubJWTService) ValidateRefreshToken(token string) (*service.Claims, error) {
	if err, ok := s.errs[token]; ok {
		return nil, err
	}
	if claims, ok := s.refresh[token]; ok {
		return claims, nil
	}
	return nil, service.ErrInvalidToken
}

func (s *stubJWTService) RefreshTokenPair(refreshToken string) (*service.TokenPair, error) {
	claims, err := s.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}
	return s.GenerateTokenPair(&domain.User{
		ID:       claims.UserID,
		Username: claims.Username,
		Role:     claims.Role,
	})
}

// echoUserHandler 回显上下文中是否存在已认证用户。
func echoUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) != nil {
			w.Write([]byte("authenticated"))
			return
		}
		w.Write([]byte("anonymous"))
	}
}

func authedRequest(authHeader string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	return req.WithContext(withRequestID(req.Context(), "req-test"))
}

func decodeEnvelopeCode(t *testing.T, body []byte) resp.Code {
	t.Helper()
	var envelope struct {
		Code resp.Code `json:"code"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("decode response envelope: %v", err)
	}
	return envelope.Code
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	jwt := newStubJWTService()
	jwt.addAccessToken("good-token", &domain.User{ID: 1, Username: "alice", Role: domain.UserRoleUser})

	handler := AuthMiddleware(jwt, zap.NewNop())(echoUserHandler())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, authedRequest("Bearer good-token"))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if got := rr.Body.String(); got != "authenticated" {
		t.Errorf("body = %q, want authenticated", got)
	}
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	jwt := newStubJWTService()
	jwt.addAccessToken("good-token", &domain.User{ID: 1, Username: "alice", Role: domain.UserRoleUser})
	jwt.failToken("expired-token", service.ErrTokenExpired)
	jwt.failToken("early-token", service.ErrTokenNotReady)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"no bearer prefix", "Token abc"},
		{"empty token", "Bearer "},
		{"bare bearer", "Bearer"},
		{"unknown token", "Bearer no-such-token"},
		{"expired token", "Bearer expired-token"},
		{"not yet valid token", "Bearer early-token"},
	}

	handler := AuthMiddleware(jwt, zap.NewNop())(echoUserHandler())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, authedRequest(tt.header))

			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rr.Code)
			}
			if code := decodeEnvelopeCode(t, rr.Body.Bytes()); code != resp.CodeUnauthorized {
				t.Errorf("envelope code = %d, want %d", code, resp.CodeUnauthorized)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name       string
		user       *domain.User
		wantStatus int
	}{
		{"admin allowed", &domain.User{ID: 1, Username: "root", Role: domain.UserRoleAdmin}, http.StatusOK},
		{"user forbidden", &domain.User{ID: 2, Username: "bob", Role: domain.UserRoleUser}, http.StatusForbidden},
		{"missing user", nil, http.StatusUnauthorized},
	}

	handler := RequireRole(domain.UserRoleAdmin, zap.NewNop())(echoUserHandler())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			ctx := withRequestID(req.Context(), "req-test")
			if tt.user != nil {
				ctx = context.WithValue(ctx, contextKeyUser, tt.user)
			}

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req.WithContext(ctx))

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}
}

func TestRequireAdmin_WrapsAdminRole(t *testing.T) {
	handler := RequireAdmin(zap.NewNop())(echoUserHandler())

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	ctx := context.WithValue(withRequestID(req.Context(), "req-test"), contextKeyUser,
		&domain.User{ID: 1, Username: "root", Role: domain.UserRoleAdmin})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req.WithContext(ctx))

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

func TestOptionalAuth(t *testing.T) {
	jwt := newStubJWTService()
	jwt.addAccessToken("good-token", &domain.User{ID: 1, Username: "alice", Role: domain.UserRoleUser})

	tests := []struct {
		name     string
		header   string
		wantBody string
	}{
		{"valid token recognized", "Bearer good-token", "authenticated"},
		{"no token passes anonymously", "", "anonymous"},
		{"invalid token passes anonymously", "Bearer bad-token", "anonymous"},
	}

	handler := OptionalAuth(jwt, zap.NewNop())(echoUserHandler())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, authedRequest(tt.header))

			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rr.Code)
			}
			if got := rr.Body.String(); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}

func TestUserFromContext(t *testing.T) {
	user := &domain.User{ID: 7, Username: "alice", Role: domain.UserRoleUser}
	ctx := context.WithValue(context.Background(), contextKeyUser, user)

	if got := UserFromContext(ctx); got == nil || got.ID != 7 {
		t.Errorf("UserFromContext = %+v, want user 7", got)
	}
	if got := UserFromContext(context.Background()); got != nil {
		t.Errorf("UserFromContext(empty) = %+v, want nil", got)
	}
}
