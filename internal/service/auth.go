package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rekur/backend/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 7 * 24 * time.Hour

// AuthUserStore is the profile access authentication needs.
type AuthUserStore interface {
	Create(ctx context.Context, u *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	Exists(ctx context.Context, email string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// AuthService handles authentication, JWT, and account creation.
type AuthService struct {
	jwtSecret     string
	adminEmail    string
	adminPassword string
	users         AuthUserStore
}

// NewAuthService creates a new AuthService.
func NewAuthService(jwtSecret, adminEmail, adminPassword string, users AuthUserStore) *AuthService {
	return &AuthService{
		jwtSecret:     jwtSecret,
		adminEmail:    adminEmail,
		adminPassword: adminPassword,
		users:         users,
	}
}

// SeedAdmin creates the staff account if it doesn't exist.
// Without ADMIN_PASSWORD no account is created.
func (s *AuthService) SeedAdmin(ctx context.Context) error {
	if s.adminPassword == "" {
		log.Warn().Msg("ADMIN_PASSWORD not set, skipping admin seed")
		return nil
	}
	exists, err := s.users.Exists(ctx, s.adminEmail)
	if err != nil {
		return fmt.Errorf("failed to check admin existence: %w", err)
	}
	if exists {
		log.Info().Str("email", s.adminEmail).Msg("admin user already exists")
		return nil
	}

	if _, err := s.create(ctx, s.adminEmail, s.adminPassword, domain.RoleAdmin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	log.Info().Str("email", s.adminEmail).Msg("admin user created")
	return nil
}

// Login validates credentials and returns a signed token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.LoginResponse, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, domain.ErrInternal("failed to find user", err)
	}
	if user == nil || user.Password == "" {
		return nil, domain.ErrUnauthorized("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, domain.ErrUnauthorized("invalid credentials")
	}
	if user.Disabled {
		return nil, domain.ErrForbidden("account disabled")
	}

	signed, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}
	return &domain.LoginResponse{
		Token: signed,
		User:  domain.LoginUser{ID: user.ID, Email: user.Email},
	}, nil
}

// Register creates a free account and signs it in.
func (s *AuthService) Register(ctx context.Context, req *domain.CreateUserRequest) (*domain.LoginResponse, error) {
	exists, err := s.users.Exists(ctx, normalizeEmail(req.Email))
	if err != nil {
		return nil, domain.ErrInternal("failed to check user", err)
	}
	if exists {
		return nil, domain.ErrConflict("email already registered")
	}
	user, err := s.create(ctx, req.Email, req.Password, domain.RoleUser)
	if err != nil {
		return nil, domain.ErrInternal("failed to create user", err)
	}
	signed, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}
	return &domain.LoginResponse{
		Token: signed,
		User:  domain.LoginUser{ID: user.ID, Email: user.Email},
	}, nil
}

func (s *AuthService) issueToken(user *domain.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"role":  user.Role,
		"exp":   now.Add(tokenTTL).Unix(),
		"iat":   now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", domain.ErrInternal("failed to sign token", err)
	}
	return signed, nil
}

// VerifyToken validates a JWT token and returns the claims.
func (s *AuthService) VerifyToken(tokenStr string) (*domain.JWTClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, domain.ErrUnauthorized("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrUnauthorized("invalid token claims")
	}

	return &domain.JWTClaims{
		Sub:   getClaimString(claims, "sub"),
		Email: getClaimString(claims, "email"),
		Role:  getClaimString(claims, "role"),
	}, nil
}

func getClaimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// CreateUser creates an account with a bcrypt password (admin only).
func (s *AuthService) CreateUser(ctx context.Context, req *domain.CreateUserRequest) (*domain.UserResponse, error) {
	exists, err := s.users.Exists(ctx, normalizeEmail(req.Email))
	if err != nil {
		return nil, domain.ErrInternal("failed to check user", err)
	}
	if exists {
		return nil, domain.ErrBadRequest("email already registered")
	}

	role := req.Role
	if role == "" {
		role = domain.RoleUser
	}
	user, err := s.create(ctx, req.Email, req.Password, role)
	if err != nil {
		return nil, domain.ErrInternal("failed to create user", err)
	}
	return user.ToResponse(), nil
}

func (s *AuthService) create(ctx context.Context, email, password, role string) (*domain.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := &domain.User{
		ID:        domain.NewUserID(),
		Email:     normalizeEmail(email),
		Password:  string(hashed),
		Plan:      domain.PlanFree,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser removes a user by ID (admin only).
func (s *AuthService) DeleteUser(ctx context.Context, id string) error {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return domain.ErrInternal("failed to find user", err)
	}
	if user == nil {
		return domain.ErrNotFound("user not found")
	}
	if user.Role == domain.RoleAdmin {
		return domain.ErrBadRequest("cannot delete admin user")
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return domain.ErrInternal("failed to delete user", err)
	}
	return nil
}

// GetUserByID returns a user profile by ID (for /api/auth/me).
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*domain.UserResponse, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, domain.ErrInternal("failed to find user", err)
	}
	if user == nil {
		return nil, domain.ErrNotFound("user not found")
	}
	return user.ToResponse(), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
