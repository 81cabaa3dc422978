// Package service 提供业务逻辑层实现。
// 服务层负责协调领域对象和仓储，实现具体的业务用例。
package service

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Lucassml-boop/commerce-e/internal/domain"
	"github.com/Lucassml-boop/commerce-e/internal/repo"
)

// 用户相关业务错误。
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserInactive       = errors.New("user is inactive")
)

// UserService 定义用户服务接口。
type UserService interface {
	Register(req *domain.RegisterRequest) (*domain.User, error)
	Login(req *domain.LoginRequest) (*domain.User, error)
	GetUserByID(id int64) (*domain.User, error)
	GetUserByUsername(username string) (*domain.User, error)
}

type userService struct {
	userRepo repo.UserRepository
	logger   *zap.Logger
}

// NewUserService 创建用户服务实例。
func NewUserService(userRepo repo.UserRepository, logger *zap.Logger) UserService {
	return &userService{userRepo: userRepo, logger: logger}
}

// Register 注册新用户。用户名与邮箱全局唯一，密码以 bcrypt 哈希存储，
// 新用户默认为普通用户角色。
func (s *userService) Register(req *domain.RegisterRequest) (*domain.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if existing, err := s.userRepo.GetByUsername(username); err != nil {
		s.logger.Error("check username failed", zap.Error(err))
		return nil, fmt.Errorf("check username: %w", err)
	} else if existing != nil {
		return nil, ErrUserExists
	}

	if existing, err := s.userRepo.GetByEmail(email); err != nil {
		s.logger.Error("check email failed", zap.Error(err))
		return nil, fmt.Errorf("check email: %w", err)
	} else if existing != nil {
		return nil, ErrUserExists
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("hash password failed", zap.Error(err))
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(passwordHash),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         domain.UserRoleUser,
		IsActive:     true,
	}
	if err := s.userRepo.Create(user); err != nil {
		s.logger.Error("create user failed", zap.Error(err))
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
	)
	return user, nil
}

// lookupByIdentifier 按用户名查找，未命中再按邮箱查找。登录标识两者皆可。
func (s *userService) lookupByIdentifier(identifier string) (*domain.User, error) {
	user, err := s.userRepo.GetByUsername(identifier)
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	if user != nil {
		return user, nil
	}

	user, err = s.userRepo.GetByEmail(identifier)
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

// Login 校验登录凭证并返回用户。
// bcrypt 的比较是常数时间的，密码错误与用户不存在返回不同的哨兵错误，
// 处理器层将二者合并为同一个对外响应。
func (s *userService) Login(req *domain.LoginRequest) (*domain.User, error) {
	user, err := s.lookupByIdentifier(req.Username)
	if err != nil {
		s.logger.Error("lookup user failed", zap.Error(err))
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("compare password failed", zap.Error(err))
		return nil, fmt.Errorf("compare password: %w", err)
	}

	s.logger.Info("user logged in",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
	)
	return user, nil
}

// GetUserByID 根据ID获取用户。
func (s *userService) GetUserByID(id int64) (*domain.User, error) {
	user, err := s.userRepo.GetByID(id)
	if err != nil {
		s.logger.Error("get user by id failed", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// GetUserByUsername 根据用户名获取用户。
func (s *userService) GetUserByUsername(username string) (*domain.User, error) {
	user, err := s.userRepo.GetByUsername(username)
	if err != nil {
		s.logger.Error("get user by username failed", zap.String("username", username), zap.Error(err))
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
