package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/pkoukos/stockfolio/internal/domain"
)

const (
	// tokenTTL is the lifetime of an access token.
	tokenTTL = 24 * time.Hour

	// resetTokenTTL bounds how long a password reset link stays usable.
	resetTokenTTL = 1 * time.Hour

	minPasswordLength = 8
)

// ErrInvalidCredentials is returned on bad username/password combinations.
// Deliberately the same for unknown users and wrong passwords.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidToken is returned for expired, malformed or mis-signed tokens.
var ErrInvalidToken = errors.New("invalid token")

// Service implements registration, login and token handling.
type Service struct {
	users  *UserRepository
	secret []byte
	log    zerolog.Logger
}

// NewService creates an auth service signing tokens with the given secret.
func NewService(users *UserRepository, secret string, log zerolog.Logger) *Service {
	return &Service{
		users:  users,
		secret: []byte(secret),
		log:    log.With().Str("service", "auth").Logger(),
	}
}

// Register creates a new account with a bcrypt-hashed password.
func (s *Service) Register(username, email, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("a valid email is required")
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(user); err != nil {
		return nil, err
	}

	return user, nil
}

// Login verifies credentials and returns the user with a signed access token.
func (s *Service) Login(username, password string) (*domain.User, string, error) {
	user, err := s.users.GetByUsername(username)
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		// Burn a comparison so unknown users take as long as wrong passwords
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$000000000000000000000u"), []byte(password))
		return nil, "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, "", err
	}

	s.log.Info().Str("username", user.Username).Msg("User logged in")
	return user, token, nil
}

// GenerateToken signs a 24h HS256 access token for a user.
func (s *Service) GenerateToken(user *domain.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"is_admin": user.IsAdmin,
		"exp":      time.Now().Add(tokenTTL).Unix(),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// ValidateToken parses an access token and returns the user it identifies.
func (s *Service) ValidateToken(tokenString string) (*domain.User, error) {
	claims, err := s.parseClaims(tokenString)
	if err != nil {
		return nil, err
	}

	userID, ok := claims["user_id"].(float64)
	if !ok {
		return nil, ErrInvalidToken
	}

	user, err := s.users.GetByID(int64(userID))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}

	return user, nil
}

// RequestPasswordReset issues a reset token for a registered email. The
// token is never handed to the caller; with no mail transport it goes to the
// server log for the operator to deliver out of band. Unknown emails are
// ignored so callers cannot probe for registered addresses.
func (s *Service) RequestPasswordReset(email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(email)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	token, err := s.GenerateResetToken(email)
	if err != nil {
		return err
	}

	s.log.Info().
		Str("username", user.Username).
		Str("reset_token", token).
		Msg("Password reset token issued; deliver to the user out of band")

	return nil
}

// GenerateResetToken signs a short-lived password reset token for an email.
func (s *Service) GenerateResetToken(email string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email":   strings.ToLower(strings.TrimSpace(email)),
		"purpose": "password_reset",
		"exp":     time.Now().Add(resetTokenTTL).Unix(),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign reset token: %w", err)
	}

	return signed, nil
}

// ResetPassword validates a reset token and sets the new password.
func (s *Service) ResetPassword(tokenString, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	claims, err := s.parseClaims(tokenString)
	if err != nil {
		return err
	}

	if purpose, _ := claims["purpose"].(string); purpose != "password_reset" {
		return ErrInvalidToken
	}

	email, _ := claims["email"].(string)
	user, err := s.users.GetByEmail(email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrInvalidToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.UpdatePassword(user.ID, string(hash)); err != nil {
		return err
	}

	s.log.Info().Str("username", user.Username).Msg("Password reset")
	return nil
}

func (s *Service) parseClaims(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
