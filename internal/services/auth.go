package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/esurat/apiserver/internal/metrics"
	"github.com/esurat/apiserver/internal/store"
	"github.com/esurat/apiserver/types"
)

const (
	// MaxLoginAttempts is the number of consecutive failures that opens a
	// lockout window.
	MaxLoginAttempts = 5
	// LockoutDuration is the length of the lockout window.
	LockoutDuration = 30 * time.Minute

	defaultTokenTTL  = 24 * time.Hour
	defaultTokenName = "auth_token"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	RecordFailedLogin(ctx context.Context, id int64, ip string, at time.Time, maxAttempts int, lockout time.Duration) (int, error)
	RecordSuccessfulLogin(ctx context.Context, id int64, at time.Time, fcmToken string) error
	ListOptions(ctx context.Context, q store.UserOptionQuery) ([]types.UserOption, error)
}

// TokenRepository defines persistence operations for access tokens.
type TokenRepository interface {
	Create(ctx context.Context, token types.AccessToken) (types.AccessToken, error)
	Get(ctx context.Context, id string) (types.AccessToken, error)
	Touch(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// LoginInput carries the credentials and client details of a login.
type LoginInput struct {
	Username  string `json:"username" validate:"required"`
	Password  string `json:"password" validate:"required"`
	FCMToken  string `json:"fcm_token"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

type LoginResult struct {
	Token     string            `json:"token"`
	TokenType string            `json:"token_type"`
	ExpiresAt time.Time         `json:"expires_at"`
	User      types.UserSummary `json:"user"`
}

// NewUserInput describes an account created from the command line.
type NewUserInput struct {
	Username    string `json:"username" validate:"required,max=100"`
	Password    string `json:"password" validate:"required,min=6"`
	NamaLengkap string `json:"nama_lengkap" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Jabatan     string `json:"jabatan"`
	Role        string `json:"role" validate:"required,oneof=user admin pimpinan"`
	Instansi    string `json:"instansi" validate:"required"`
	KodeUser    string `json:"kode_user" validate:"required,max=100"`
	Level       string `json:"level"`
}

// AuthService authenticates users and manages their access tokens.
type AuthService struct {
	users    UserRepository
	tokens   TokenRepository
	activity *ActivityService
	metrics  *metrics.Metrics
	logger   *zap.Logger
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

func NewAuthService(users UserRepository, tokens TokenRepository, activity *ActivityService, secret string, ttl time.Duration, logger *zap.Logger) *AuthService {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:    users,
		tokens:   tokens,
		activity: activity,
		logger:   logger,
		secret:   []byte(secret),
		ttl:      ttl,
		now:      time.Now,
	}
}

// WithMetrics enables login counters.
func (s *AuthService) WithMetrics(m *metrics.Metrics) *AuthService {
	s.metrics = m
	return s
}

// Login checks the lockout window before the password. A wrong password for
// an existing user counts towards the lockout.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := validateStruct(in); err != nil {
		return LoginResult{}, err
	}

	now := s.now()
	user, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.metrics.Login("invalid")
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if user.IsBlocked(now) {
		s.metrics.Login("blocked")
		return LoginResult{}, ErrAccountBlocked
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		attempts, recErr := s.users.RecordFailedLogin(ctx, user.ID, in.IP, now, MaxLoginAttempts, LockoutDuration)
		if recErr != nil {
			return LoginResult{}, recErr
		}
		if attempts >= MaxLoginAttempts {
			s.logger.Warn("account locked after failed logins",
				zap.Int64("user_id", user.ID),
				zap.Int("attempts", attempts),
				zap.String("ip", in.IP),
			)
		}
		s.metrics.Login("invalid")
		return LoginResult{}, ErrInvalidCredentials
	}

	if err := s.users.RecordSuccessfulLogin(ctx, user.ID, now, in.FCMToken); err != nil {
		return LoginResult{}, err
	}
	user.LoginAttempts = 0
	user.BlockedUntil = nil
	user.TerakhirLogin = &now

	token, err := s.tokens.Create(ctx, types.AccessToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Name:      defaultTokenName,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	})
	if err != nil {
		return LoginResult{}, fmt.Errorf("create token: %w", err)
	}
	signed, err := issueToken(user.ID, token.ID, s.secret, now, s.ttl)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign token: %w", err)
	}

	actor := Actor{User: user, IP: in.IP, UserAgent: in.UserAgent}
	s.activity.record(ctx, actor, types.ActionLogin, nil, "User logged in successfully", nil)
	s.metrics.Login("ok")

	return LoginResult{
		Token:     signed,
		TokenType: "Bearer",
		ExpiresAt: token.ExpiresAt,
		User:      user.Summary(),
	}, nil
}

// Logout revokes only the token identified by tokenID.
func (s *AuthService) Logout(ctx context.Context, actor Actor, tokenID string) error {
	if err := s.tokens.Delete(ctx, tokenID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	s.activity.record(ctx, actor, types.ActionLogout, nil, "User logged out", nil)
	return nil
}

// Authenticate resolves a bearer token to its user and token id. Any
// failure is reported as ErrUnauthenticated.
func (s *AuthService) Authenticate(ctx context.Context, bearer string) (types.User, string, error) {
	now := s.now()
	claims, err := parseToken(bearer, s.secret, now)
	if err != nil {
		return types.User{}, "", ErrUnauthenticated
	}

	token, err := s.tokens.Get(ctx, claims.TokenID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, "", ErrUnauthenticated
		}
		return types.User{}, "", err
	}
	if token.UserID != claims.UserID || !token.ExpiresAt.After(now) {
		return types.User{}, "", ErrUnauthenticated
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, "", ErrUnauthenticated
		}
		return types.User{}, "", err
	}

	if err := s.tokens.Touch(ctx, token.ID, now); err != nil {
		s.logger.Warn("touch token failed", zap.String("token_id", token.ID), zap.Error(err))
	}
	return user, token.ID, nil
}

// CreateUser hashes the password and stores a new account.
func (s *AuthService) CreateUser(ctx context.Context, in NewUserInput) (types.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := validateStruct(in); err != nil {
		return types.User{}, err
	}
	role, err := types.ParseRole(in.Role)
	if err != nil {
		return types.User{}, newValidationError("role", "The selected role is invalid.")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, err
	}
	level := in.Level
	if level == "" {
		level = role.String()
	}
	return s.users.Create(ctx, types.User{
		Username:     in.Username,
		PasswordHash: string(hashed),
		NamaLengkap:  in.NamaLengkap,
		Email:        in.Email,
		Jabatan:      in.Jabatan,
		Role:         role,
		Instansi:     in.Instansi,
		KodeUser:     in.KodeUser,
		Level:        level,
		Status:       "1",
	})
}

// Profile returns the current state of the user.
func (s *AuthService) Profile(ctx context.Context, userID int64) (types.User, error) {
	return s.users.GetByID(ctx, userID)
}
