package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmarxie/smart-parking/internal/domain"
	"github.com/dmarxie/smart-parking/internal/repository"
)

type fakeUserRepo struct {
	users  map[int]*domain.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[int]*domain.User{}, nextID: 1}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, repository.ErrDuplicateEntry
		}
	}
	stored := *user
	stored.ID = r.nextID
	r.nextID++
	r.users[stored.ID] = &stored
	out := stored
	return &out, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) FindByID(_ context.Context, id int) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *domain.User) (*domain.User, error) {
	if _, ok := r.users[user.ID]; !ok {
		return nil, repository.ErrNotFound
	}
	stored := *user
	r.users[user.ID] = &stored
	out := stored
	return &out, nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id int, passwordHash string) error {
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Password = passwordHash
	return nil
}

func (r *fakeUserRepo) FindAll(_ context.Context, _ domain.UserFilterDTO, _, _ int) ([]domain.User, int, error) {
	out := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func newTestAuthService() (*AuthService, *fakeUserRepo) {
	repo := newFakeUserRepo()
	return NewAuthService(repo, "test-secret", time.Hour, 24*time.Hour), repo
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	user, err := svc.Register(ctx, domain.RegisterUserDTO{
		Email:     "driver@example.com",
		Password:  "hunter2hunter2",
		FirstName: "Dana",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Role != domain.RoleUser {
		t.Errorf("registered role = %q, want %q", user.Role, domain.RoleUser)
	}
	if user.Password != "" {
		t.Error("Register leaked the password hash")
	}
	if user.NotificationPreference != domain.NotifyAll {
		t.Errorf("default notification preference = %q, want %q", user.NotificationPreference, domain.NotifyAll)
	}

	pair, err := svc.Login(ctx, domain.LoginUserDTO{Email: "driver@example.com", Password: "hunter2hunter2"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if pair.Access == "" || pair.Refresh == "" {
		t.Fatal("Login returned an incomplete token pair")
	}

	claims, err := svc.ValidateToken(pair.Access)
	if err != nil {
		t.Fatalf("ValidateToken(access): %v", err)
	}
	if claims["email"] != "driver@example.com" {
		t.Errorf("access token email claim = %v", claims["email"])
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	dto := domain.RegisterUserDTO{Email: "dup@example.com", Password: "hunter2hunter2"}
	if _, err := svc.Register(ctx, dto); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if _, err := svc.Register(ctx, dto); !errors.Is(err, ErrUserAlreadyExists) {
		t.Fatalf("second Register error = %v, want ErrUserAlreadyExists", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, domain.RegisterUserDTO{Email: "a@example.com", Password: "correcthorse"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.Login(ctx, domain.LoginUserDTO{Email: "a@example.com", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, domain.LoginUserDTO{Email: "nobody@example.com", Password: "whatever"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user error = %v, want ErrInvalidCredentials", err)
	}
}

func TestRefreshFlow(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, domain.RegisterUserDTO{Email: "r@example.com", Password: "hunter2hunter2"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	pair, err := svc.Login(ctx, domain.LoginUserDTO{Email: "r@example.com", Password: "hunter2hunter2"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	token, err := svc.Refresh(ctx, pair.Refresh)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, err := svc.ValidateToken(token.Access); err != nil {
		t.Errorf("refreshed access token rejected: %v", err)
	}

	// An access token must not pass as a refresh token, and vice versa.
	if _, err := svc.Refresh(ctx, pair.Access); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Refresh(access token) error = %v, want ErrTokenInvalid", err)
	}
	if _, err := svc.ValidateToken(pair.Refresh); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ValidateToken(refresh token) error = %v, want ErrTokenInvalid", err)
	}

	if _, err := svc.Refresh(ctx, "not-a-token"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Refresh(garbage) error = %v, want ErrTokenInvalid", err)
	}
}

func TestChangePassword(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	user, err := svc.Register(ctx, domain.RegisterUserDTO{Email: "p@example.com", Password: "oldpassword1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	err = svc.ChangePassword(ctx, user.ID, domain.ChangePasswordDTO{OldPassword: "nope", NewPassword: "newpassword1"})
	if !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("ChangePassword with wrong old password error = %v, want ErrWrongPassword", err)
	}

	err = svc.ChangePassword(ctx, user.ID, domain.ChangePasswordDTO{OldPassword: "oldpassword1", NewPassword: "newpassword1"})
	if err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	if _, err := svc.Login(ctx, domain.LoginUserDTO{Email: "p@example.com", Password: "oldpassword1"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Error("old password still accepted after change")
	}
	if _, err := svc.Login(ctx, domain.LoginUserDTO{Email: "p@example.com", Password: "newpassword1"}); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	user, err := svc.Register(ctx, domain.RegisterUserDTO{Email: "u@example.com", Password: "hunter2hunter2"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	first := "Avery"
	pref := string(domain.NotifyImportant)
	updated, err := svc.UpdateProfile(ctx, user.ID, domain.UpdateUserDTO{FirstName: &first, NotificationPreference: &pref})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.FirstName != "Avery" {
		t.Errorf("FirstName = %q, want %q", updated.FirstName, "Avery")
	}
	if updated.NotificationPreference != domain.NotifyImportant {
		t.Errorf("NotificationPreference = %q, want %q", updated.NotificationPreference, domain.NotifyImportant)
	}

	bad := "SOMETIMES"
	if _, err := svc.UpdateProfile(ctx, user.ID, domain.UpdateUserDTO{NotificationPreference: &bad}); err == nil {
		t.Error("UpdateProfile accepted an invalid notification preference")
	}
}
