package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"groundstation/internal/models"
	"groundstation/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	SuperadminUsername = "superadmin"
	minPasswordLength  = 6
)

var (
	ErrInvalidUsername = errors.New("invalid username")
	ErrInvalidPassword = errors.New("password must be at least 6 characters")
	ErrInvalidRole     = errors.New("invalid role")
	ErrProtectedUser   = errors.New("the superadmin account cannot be deleted")
)

// AuthService answers who a caller is and manages the account file.
type AuthService interface {
	Authenticate(ctx context.Context, username, password string) (bool, models.Role, error)
	CreateUser(ctx context.Context, username, password string, role models.Role) error
	DeleteUser(ctx context.Context, username string) error
	UpdatePassword(ctx context.Context, username, newPassword string) error
	ListUsers(ctx context.Context) ([]models.UserInfo, error)
	// EnsureSuperadmin creates the superadmin account when it is missing.
	EnsureSuperadmin(ctx context.Context, password string) (bool, error)
}

type authService struct {
	repo   repository.UserRepository
	logger *zap.Logger
	cost   int
	now    func() time.Time
}

func NewAuthService(repo repository.UserRepository, logger *zap.Logger) AuthService {
	return &authService{
		repo:   repo,
		logger: logger.Named("auth"),
		cost:   bcrypt.DefaultCost,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func validateUsername(username string) error {
	if username == "" || strings.TrimSpace(username) != username || strings.ContainsAny(username, "/\\:") {
		return ErrInvalidUsername
	}
	return nil
}

func (s *authService) hash(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", ErrInvalidPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func (s *authService) Authenticate(ctx context.Context, username, password string) (bool, models.Role, error) {
	account, err := s.repo.Get(ctx, username)
	if errors.Is(err, repository.ErrUserNotFound) {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return false, "", nil
	}

	role := account.Role
	if !role.Valid() {
		role = models.RoleUser
	}
	return true, role, nil
}

func (s *authService) CreateUser(ctx context.Context, username, password string, role models.Role) error {
	if err := validateUsername(username); err != nil {
		return err
	}
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		return ErrInvalidRole
	}

	hashed, err := s.hash(password)
	if err != nil {
		return err
	}

	if err := s.repo.Create(ctx, username, models.UserAccount{
		PasswordHash: hashed,
		Role:         role,
		CreatedAt:    s.now(),
	}); err != nil {
		return err
	}

	s.logger.Info("user created", zap.String("username", username), zap.String("role", string(role)))
	return nil
}

func (s *authService) DeleteUser(ctx context.Context, username string) error {
	if username == SuperadminUsername {
		return ErrProtectedUser
	}
	if err := s.repo.Delete(ctx, username); err != nil {
		return err
	}

	s.logger.Info("user deleted", zap.String("username", username))
	return nil
}

func (s *authService) UpdatePassword(ctx context.Context, username, newPassword string) error {
	account, err := s.repo.Get(ctx, username)
	if err != nil {
		return err
	}

	hashed, err := s.hash(newPassword)
	if err != nil {
		return err
	}

	now := s.now()
	account.PasswordHash = hashed
	account.UpdatedAt = &now
	if err := s.repo.Update(ctx, username, *account); err != nil {
		return err
	}

	s.logger.Info("password updated", zap.String("username", username))
	return nil
}

func (s *authService) ListUsers(ctx context.Context) ([]models.UserInfo, error) {
	accounts, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	users := make([]models.UserInfo, 0, len(accounts))
	for name, account := range accounts {
		role := account.Role
		if !role.Valid() {
			role = models.RoleUser
		}
		users = append(users, models.UserInfo{
			Username:  name,
			Role:      role,
			CreatedAt: account.CreatedAt,
			UpdatedAt: account.UpdatedAt,
		})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *authService) EnsureSuperadmin(ctx context.Context, password string) (bool, error) {
	_, err := s.repo.Get(ctx, SuperadminUsername)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return false, err
	}

	if err := s.CreateUser(ctx, SuperadminUsername, password, models.RoleSuperadmin); err != nil {
		return false, err
	}
	s.logger.Warn("superadmin account created with the configured default password; change it")
	return true, nil
}
