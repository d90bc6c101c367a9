package service

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/campick-system/internal/model"
)

// RegisterUser регистрирует нового пользователя с указанной ролью.
// Пустая роль означает студента.
func (s *Service) RegisterUser(ctx context.Context, name, email, password string, role model.Role) (int64, error) {
	if name == "" || email == "" || password == "" {
		return 0, ErrMissingFields
	}

	if role == "" {
		role = model.RoleStudent
	}
	switch role {
	case model.RoleStudent, model.RoleTeacher, model.RoleShopOwner:
	default:
		return 0, ErrInvalidRole
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, err
	}

	return s.repo.CreateUser(ctx, name, email, hash, role)
}

// AuthenticateUser проверяет email и пароль пользователя.
// Студент с превышенным числом предупреждений в систему не допускается.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if u.Restricted() {
		return nil, ErrAccountRestricted
	}

	return u, nil
}
