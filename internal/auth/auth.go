// Package auth manages customer and admin accounts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"storefront-service/internal/model"
	"storefront-service/internal/store"
	"storefront-service/pkg/jwtutil"
	"storefront-service/prometheus"
)

var (
	// ErrInvalidCredentials is returned for both unknown emails and wrong
	// passwords so callers cannot tell which one failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("user already exists")
)

// Session is the outcome of a successful login or registration
type Session struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// dummyHash is compared against when the email is unknown, so a failed login
// costs one bcrypt comparison either way.
var (
	dummyHash     []byte
	dummyHashOnce sync.Once
)

func unknownUserHash() []byte {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("storefront-unknown-user"), bcrypt.DefaultCost)
	})
	return dummyHash
}

// Service authenticates users against the user store
type Service struct {
	users   store.Users
	jwt     *jwtutil.JWTUtil
	log     *zap.Logger
	compare func(hash, password []byte) error
}

func NewService(users store.Users, jwt *jwtutil.JWTUtil, log *zap.Logger) *Service {
	return &Service{users: users, jwt: jwt, log: log, compare: bcrypt.CompareHashAndPassword}
}

// HashPassword returns the bcrypt hash of password
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Login checks the password and issues a session token
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	done := prometheus.TrackDBOperation("user_query")
	user, err := s.users.GetByEmail(ctx, email)
	done(time.Now())
	if errors.Is(err, store.ErrNotFound) {
		_ = s.compare(unknownUserHash(), []byte(password))
		s.log.Warn("Login for unknown email", zap.String("email", email))
		prometheus.RecordAuthError("user_not_found")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		prometheus.RecordAuthError("db_error")
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := s.compare([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.log.Warn("Invalid password", zap.String("email", email))
		prometheus.RecordAuthError("invalid_password")
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	prometheus.LoginCounter.Inc()
	return &Session{Token: token, User: user}, nil
}

// Register creates a customer account and logs it in
func (s *Service) Register(ctx context.Context, name, email, password string) (*Session, error) {
	user, err := s.CreateUser(ctx, name, email, password, model.RoleCustomer)
	if err != nil {
		return nil, err
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	prometheus.RegisterCounter.Inc()
	return &Session{Token: token, User: user}, nil
}

// CreateUser stores a new account with a hashed password
func (s *Service) CreateUser(ctx context.Context, name, email, password string, role model.Role) (*model.User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		Role:         role,
	}

	done := prometheus.TrackDBOperation("user_insert")
	err = s.users.Create(ctx, user)
	done(time.Now())
	if errors.Is(err, store.ErrConflict) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Me loads the user behind a session
func (s *Service) Me(ctx context.Context, userID string) (*model.User, error) {
	return s.users.Get(ctx, userID)
}
