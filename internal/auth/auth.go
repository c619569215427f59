package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/meduzzen/messenger/internal/apperr"
	"github.com/meduzzen/messenger/internal/cache"
	"github.com/meduzzen/messenger/internal/models"
)

const DefaultTokenTTL = 30 * time.Minute

var (
	errBadCredentials  = apperr.Auth("Incorrect email or password")
	errInvalidToken    = apperr.Auth("Could not validate credentials")
	errEmailTaken      = apperr.Validation("Email already registered")
	errUsernameTaken   = apperr.Validation("Username already taken")
	errAccountTaken    = apperr.Validation("Username or email already registered")
	errPasswordMissing = apperr.Validation("Password is required")
)

type Service struct {
	db          *gorm.DB
	jwtSecret   []byte
	tokenTTL    time.Duration
	revocations Revocations
	now         func() time.Time
}

type Claims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type Option func(*Service)

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithRevocationCache puts c in front of the blacklist table.
func WithRevocationCache(c cache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.revocations = NewCachedRevocations(s.revocations, c)
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(db *gorm.DB, jwtSecret string, opts ...Option) *Service {
	s := &Service{
		db:          db,
		jwtSecret:   []byte(jwtSecret),
		tokenTTL:    DefaultTokenTTL,
		revocations: NewDBRevocations(db),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) TokenTTL() time.Duration {
	return s.tokenTTL
}

func (s *Service) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if password == "" {
		return nil, errPasswordMissing
	}

	if err := s.checkAvailable(ctx, username, email); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{Username: username, Email: email, PasswordHash: string(hash)}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a race with a concurrent registration.
			if err := s.checkAvailable(ctx, username, email); err != nil {
				return nil, err
			}
			return nil, errAccountTaken
		}
		return nil, fmt.Errorf("auth.Register: %w", err)
	}

	log.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// checkAvailable reports which of email and username is already taken.
func (s *Service) checkAvailable(ctx context.Context, username, email string) error {
	tx := s.db.WithContext(ctx)

	var count int64
	if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return fmt.Errorf("auth.Register: %w", err)
	}
	if count > 0 {
		return errEmailTaken
	}
	if err := tx.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return fmt.Errorf("auth.Register: %w", err)
	}
	if count > 0 {
		return errUsernameTaken
	}
	return nil
}

// Authenticate checks the credentials and issues a token.
func (s *Service) Authenticate(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", errBadCredentials
		}
		return "", fmt.Errorf("failed to query user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", errBadCredentials
	}

	token, err := s.GenerateToken(user.ID, user.Email)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return token, nil
}

func (s *Service) GenerateToken(userID uint, email string) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ParseToken checks the signature and expiry only. Use Verify for requests.
func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid || claims.ID == "" || claims.UserID == 0 {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// Verify returns the user id of a valid, unrevoked token whose user still exists.
func (s *Service) Verify(ctx context.Context, tokenString string) (uint, error) {
	claims, err := s.ParseToken(tokenString)
	if err != nil {
		log.Debug("token rejected", "err", err)
		return 0, errInvalidToken
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return 0, fmt.Errorf("auth.Verify: %w", err)
	}
	if revoked {
		return 0, errInvalidToken
	}

	exists, err := s.UserExists(ctx, claims.UserID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, errInvalidToken
	}
	return claims.UserID, nil
}

// Revoke blacklists the token until its natural expiry.
func (s *Service) Revoke(ctx context.Context, tokenString string) error {
	claims, err := s.ParseToken(tokenString)
	if err != nil {
		return errInvalidToken
	}
	if err := s.revocations.Revoke(ctx, claims.ID, claims.UserID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("auth.Revoke: %w", err)
	}
	log.Info("token revoked", "user_id", claims.UserID, "jti", claims.ID)
	return nil
}

// PruneRevoked drops blacklist rows for tokens that have expired anyway.
func (s *Service) PruneRevoked(ctx context.Context) (int64, error) {
	return s.revocations.Prune(ctx, s.now())
}

func (s *Service) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// ListUsers returns everyone except excludeID, optionally filtered by a
// username/email substring.
func (s *Service) ListUsers(ctx context.Context, excludeID uint, query string) ([]models.User, error) {
	tx := s.db.WithContext(ctx).Where("id <> ?", excludeID)
	if query = strings.TrimSpace(query); query != "" {
		pattern := "%" + strings.ToLower(query) + "%"
		tx = tx.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern)
	}

	users := make([]models.User, 0)
	if err := tx.Order("username").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("auth.ListUsers: %w", err)
	}
	return users, nil
}

func (s *Service) UserExists(ctx context.Context, userID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to query user: %w", err)
	}
	return count > 0, nil
}
