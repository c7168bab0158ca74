package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"PhoneVerse/internal/config"
	"PhoneVerse/internal/domain"
	"PhoneVerse/internal/ports"
)

const minPasswordLength = 6

// Claims is the signed payload of an auth token.
type Claims struct {
	UserID   int64       `json:"id"`
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// RegisterInput carries a new account request.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName string
	Role     domain.Role
}

// LoginResult is returned on successful sign-in.
type LoginResult struct {
	User      domain.User
	Token     string
	ExpiresAt time.Time
}

// AuthDeps wires the repositories used by the auth service.
type AuthDeps struct {
	Users    ports.UserRepository
	Sessions ports.SessionRepository
	Logger   *zap.Logger
	Clock    func() time.Time
}

// AuthService issues and verifies tokens backed by the session table.
type AuthService struct {
	users    ports.UserRepository
	sessions ports.SessionRepository
	logger   *zap.Logger
	now      func() time.Time
	secret   []byte
	ttl      time.Duration
	cost     int
	// dummyHash keeps unknown-user logins as slow as wrong-password ones.
	dummyHash []byte
}

// NewAuthService constructs the service. cfg.JWTSecret must be non-empty.
func NewAuthService(cfg config.AuthConfig, deps AuthDeps) (*AuthService, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("phoneverse-dummy-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		users:     deps.Users,
		sessions:  deps.Sessions,
		logger:    logger.With(zap.String("component", "auth")),
		now:       now,
		secret:    []byte(cfg.JWTSecret),
		ttl:       cfg.TokenTTL,
		cost:      cost,
		dummyHash: dummy,
	}, nil
}

// Register creates an active account with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return domain.User{}, fmt.Errorf("%w: username, email and password are required", domain.ErrValidation)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return domain.User{}, fmt.Errorf("%w: invalid email", domain.ErrValidation)
	}
	if len(in.Password) < minPasswordLength {
		return domain.User{}, fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLength)
	}

	exists, err := s.users.UserExists(ctx, in.Username, in.Email)
	if err != nil {
		return domain.User{}, err
	}
	if exists {
		return domain.User{}, domain.ErrDuplicateUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	user := domain.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		FullName:     in.FullName,
		Role:         role,
		Status:       domain.UserActive,
		CreatedAt:    s.now().UTC(),
	}
	id, err := s.users.CreateUser(ctx, user)
	if err != nil {
		return domain.User{}, err
	}
	user.ID = id
	s.logger.Info("user registered", zap.Int64("user_id", id), zap.String("username", user.Username))
	return user, nil
}

// Login verifies credentials, records a session and returns a signed token.
// Unknown users and wrong passwords fail identically.
func (s *AuthService) Login(ctx context.Context, login, password string) (LoginResult, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return LoginResult{}, fmt.Errorf("%w: username and password are required", domain.ErrValidation)
	}

	user, err := s.users.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return LoginResult{}, domain.ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, domain.ErrInvalidCredentials
	}
	if user.Status != domain.UserActive {
		return LoginResult{}, domain.ErrAccountSuspended
	}

	now := s.now().UTC()
	expires := now.Add(s.ttl)
	token, err := s.issue(user, now, expires)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.sessions.CreateSession(ctx, domain.Session{Token: token, UserID: user.ID, ExpiresAt: expires}); err != nil {
		return LoginResult{}, fmt.Errorf("create session: %w", err)
	}
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("update last login failed", zap.Int64("user_id", user.ID), zap.Error(err))
	} else {
		user.LastLogin = &now
	}

	s.logger.Info("user logged in", zap.Int64("user_id", user.ID))
	return LoginResult{User: user, Token: token, ExpiresAt: expires}, nil
}

func (s *AuthService) issue(user domain.User, now, expires time.Time) (string, error) {
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   fmt.Sprint(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify requires a valid signature, a live session row and an active user.
func (s *AuthService) Verify(ctx context.Context, token string) (domain.User, error) {
	if token == "" {
		return domain.User{}, domain.ErrInvalidSession
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return domain.User{}, domain.ErrInvalidSession
	}

	session, err := s.sessions.GetSession(ctx, token, s.now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrInvalidSession
		}
		return domain.User{}, err
	}
	if session.UserID != claims.UserID {
		return domain.User{}, domain.ErrInvalidSession
	}

	user, err := s.users.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrInvalidSession
		}
		return domain.User{}, err
	}
	if user.Status != domain.UserActive {
		return domain.User{}, domain.ErrInvalidSession
	}
	return user, nil
}

// Logout revokes the session; unknown tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.DeleteSession(ctx, token)
}

// Profile loads the full account record.
func (s *AuthService) Profile(ctx context.Context, userID int64) (domain.User, error) {
	return s.users.GetUser(ctx, userID)
}

// UpdateProfile writes the provided fields and returns the refreshed user.
func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, update domain.ProfileUpdate) (domain.User, error) {
	if err := s.users.UpdateProfile(ctx, userID, update); err != nil {
		return domain.User{}, err
	}
	return s.users.GetUser(ctx, userID)
}

// ListUsers returns every account for the admin console.
func (s *AuthService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.users.ListUsers(ctx)
}

// SetStatus activates or suspends an account.
func (s *AuthService) SetStatus(ctx context.Context, userID int64, status domain.UserStatus) error {
	if status != domain.UserActive && status != domain.UserSuspended {
		return fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
	}
	return s.users.SetUserStatus(ctx, userID, status)
}

// SetRole promotes or demotes an account.
func (s *AuthService) SetRole(ctx context.Context, userID int64, role domain.Role) error {
	if role != domain.RoleUser && role != domain.RoleAdmin {
		return fmt.Errorf("%w: unknown role %q", domain.ErrValidation, role)
	}
	return s.users.SetUserRole(ctx, userID, role)
}

// DeleteUser removes an account on behalf of actorID. Admins cannot delete
// themselves.
func (s *AuthService) DeleteUser(ctx context.Context, actorID, userID int64) error {
	if actorID == userID {
		return fmt.Errorf("%w: cannot delete your own account", domain.ErrForbidden)
	}
	return s.users.DeleteUser(ctx, userID)
}

// SweepSessions deletes expired session rows.
func (s *AuthService) SweepSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpiredSessions(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	if n > 0 {
		s.logger.Info("expired sessions swept", zap.Int64("removed", n))
	}
	return n, nil
}
