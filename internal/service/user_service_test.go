package service

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Lucassml-boop/commerce-e/internal/domain"
)

// fakeUserRepo 内存用户仓储。
type fakeUserRepo struct {
	byUsername map[string]*domain.User
	byEmail    map[string]*domain.User
	nextID     int64
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byUsername: make(map[string]*domain.User),
		byEmail:    make(map[string]*domain.User),
		nextID:     1,
	}
}

func (f *fakeUserRepo) Create(user *domain.User) error {
	if _, ok := f.byUsername[user.Username]; ok {
		return errors.New("duplicate username")
	}
	if _, ok := f.byEmail[user.Email]; ok {
		return errors.New("duplicate email")
	}
	user.ID = f.nextID
	f.nextID++
	f.byUsername[user.Username] = user
	f.byEmail[user.Email] = user
	return nil
}

func (f *fakeUserRepo) GetByID(id int64) (*domain.User, error) {
	for _, user := range f.byUsername {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) GetByUsername(username string) (*domain.User, error) {
	return f.byUsername[username], nil
}

func (f *fakeUserRepo) GetByEmail(email string) (*domain.User, error) {
	return f.byEmail[email], nil
}

func (f *fakeUserRepo) Update(user *domain.User) error { return nil }

func (f *fakeUserRepo) Delete(id int64) error { return nil }

func newTestUserService() (UserService, *fakeUserRepo) {
	repo := newFakeUserRepo()
	return NewUserService(repo, zap.NewNop()), repo
}

func mustRegister(t *testing.T, svc UserService, username, email, password string) *domain.User {
	t.Helper()
	user, err := svc.Register(&domain.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		t.Fatalf("Register(%s): %v", username, err)
	}
	return user
}

func TestUserService_Register(t *testing.T) {
	svc, _ := newTestUserService()

	user := mustRegister(t, svc, "alice", "alice@example.com", "password123")

	if user.Role != domain.UserRoleUser {
		t.Errorf("role = %s, want %s", user.Role, domain.UserRoleUser)
	}
	if !user.IsActive {
		t.Error("new user is not active")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}
}

func TestUserService_Register_NormalizesIdentity(t *testing.T) {
	svc, _ := newTestUserService()

	user, err := svc.Register(&domain.RegisterRequest{
		Username: "  alice  ",
		Email:    " Alice@Example.COM ",
		Password: "password123",
		FullName: " Alice Liddell ",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if user.Username != "alice" {
		t.Errorf("username = %q, want alice", user.Username)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("email = %q, want alice@example.com", user.Email)
	}
	if user.FullName != "Alice Liddell" {
		t.Errorf("full name = %q, want Alice Liddell", user.FullName)
	}
}

func TestUserService_Register_Duplicates(t *testing.T) {
	svc, _ := newTestUserService()
	mustRegister(t, svc, "alice", "alice@example.com", "password123")

	tests := []struct {
		name     string
		username string
		email    string
	}{
		{"duplicate username", "alice", "other@example.com"},
		{"duplicate email", "bob", "alice@example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(&domain.RegisterRequest{
				Username: tt.username,
				Email:    tt.email,
				Password: "password456",
			})
			if !errors.Is(err, ErrUserExists) {
				t.Errorf("Register = %v, want ErrUserExists", err)
			}
		})
	}
}

func TestUserService_Login(t *testing.T) {
	svc, _ := newTestUserService()
	mustRegister(t, svc, "alice", "alice@example.com", "password123")

	// 用户名和邮箱都可以作为登录标识
	for _, identifier := range []string{"alice", "alice@example.com"} {
		user, err := svc.Login(&domain.LoginRequest{Username: identifier, Password: "password123"})
		if err != nil {
			t.Fatalf("Login(%s): %v", identifier, err)
		}
		if user.Username != "alice" {
			t.Errorf("Login(%s) returned user %q, want alice", identifier, user.Username)
		}
	}
}

func TestUserService_Login_Failures(t *testing.T) {
	svc, _ := newTestUserService()
	mustRegister(t, svc, "alice", "alice@example.com", "password123")

	inactive := mustRegister(t, svc, "mallory", "mallory@example.com", "password123")
	inactive.IsActive = false

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"wrong password", "alice", "wrongpassword", ErrInvalidCredentials},
		{"unknown username", "nobody", "password123", ErrUserNotFound},
		{"unknown email", "nobody@example.com", "password123", ErrUserNotFound},
		{"inactive user", "mallory", "password123", ErrUserInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(&domain.LoginRequest{Username: tt.username, Password: tt.password})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Login = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUserService_GetUserByID(t *testing.T) {
	svc, _ := newTestUserService()
	registered := mustRegister(t, svc, "alice", "alice@example.com", "password123")

	user, err := svc.GetUserByID(registered.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if user.ID != registered.ID {
		t.Errorf("user ID = %d, want %d", user.ID, registered.ID)
	}

	if _, err := svc.GetUserByID(999); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetUserByID(999) = %v, want ErrUserNotFound", err)
	}
}

func TestUserService_GetUserByUsername(t *testing.T) {
	svc, _ := newTestUserService()
	mustRegister(t, svc, "alice", "alice@example.com", "password123")

	user, err := svc.GetUserByUsername("alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("username = %q, want alice", user.Username)
	}

	if _, err := svc.GetUserByUsername("nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetUserByUsername(nobody) = %v, want ErrUserNotFound", err)
	}
}
