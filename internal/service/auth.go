package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"bbdist/internal/model"
)

type AuthService struct {
	db *sql.DB
}

func NewAuthService(db *sql.DB) *AuthService {
	return &AuthService{db: db}
}

func (s *AuthService) Register(ctx context.Context, login, password string, roles []string) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	query := `INSERT INTO users (login, password_hash, roles) VALUES ($1, $2, $3) RETURNING id, login, created_at`
	row := s.db.QueryRowContext(ctx, query, login, hash, strings.Join(roles, ","))

	user := model.User{Roles: roles, PasswordHash: hash}
	if err := row.Scan(&user.ID, &user.Login, &user.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrLoginTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return &user, nil
}

func (s *AuthService) Authenticate(ctx context.Context, login, password string) (*model.User, error) {
	query := `SELECT id, login, password_hash, roles, created_at FROM users WHERE login = $1`
	row := s.db.QueryRowContext(ctx, query, login)

	var user model.User
	var roles string
	if err := row.Scan(&user.ID, &user.Login, &user.PasswordHash, &roles, &user.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	user.Roles = splitRoles(roles)

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &user, nil
}

func splitRoles(raw string) []string {
	roles := []string{}
	for _, r := range strings.Split(raw, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}
