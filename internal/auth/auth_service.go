// Package auth guards teacher routes with a shared passcode and short lived JWTs.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"classqa/internal/common/cache"
	pkgerrors "classqa/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleTeacher     = "teacher"
	tokenTypeAccess = "access"

	defaultTokenTTL       = 8 * time.Hour
	defaultIssuer         = "classqa"
	defaultLoginFailTTL   = 15 * time.Minute
	defaultLoginFailLimit = 5
)

// Config holds configuration for AuthService.
type Config struct {
	// Passcode is the teacher secret, plain text or a bcrypt hash ("$2a$...").
	Passcode       string
	JWTSecret      []byte
	JWTIssuer      string
	TokenTTL       time.Duration
	LoginFailTTL   time.Duration
	LoginFailLimit int
	// Clock overrides time.Now for token timestamps.
	Clock func() time.Time
}

// Claims identify an authenticated teacher session.
type Claims struct {
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
}

// AuthService verifies the teacher passcode and issues session tokens.
type AuthService struct {
	config         Config
	loginFailCache cache.BasicOps
	now            func() time.Time
}

// NewAuthService creates a new AuthService. loginFailCache may be nil, which
// disables the login failure limit. Without a JWT secret a random one is used,
// so tokens do not survive a restart.
func NewAuthService(cfg Config, loginFailCache cache.BasicOps) (*AuthService, error) {
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = defaultIssuer
	}
	if cfg.LoginFailTTL == 0 {
		cfg.LoginFailTTL = defaultLoginFailTTL
	}
	if cfg.LoginFailLimit == 0 {
		cfg.LoginFailLimit = defaultLoginFailLimit
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if len(cfg.JWTSecret) == 0 {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate jwt secret failed: %w", err)
		}
		cfg.JWTSecret = secret
	}
	return &AuthService{config: cfg, loginFailCache: loginFailCache, now: cfg.Clock}, nil
}

// Login checks passcode and returns a teacher token. ip keys the failure counter.
func (s *AuthService) Login(ctx context.Context, passcode, ip string) (LoginResult, error) {
	if s.config.Passcode == "" {
		return LoginResult{}, pkgerrors.New(pkgerrors.PasscodeNotConfigured)
	}
	if err := s.checkLoginLimit(ctx, ip); err != nil {
		return LoginResult{}, err
	}
	if !passcodeMatches(s.config.Passcode, passcode) {
		s.recordLoginFailure(ctx, ip)
		return LoginResult{}, pkgerrors.New(pkgerrors.InvalidPasscode)
	}
	s.clearLoginFailure(ctx, ip)

	token, expiresAt, err := s.generateToken()
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, ExpiresAt: expiresAt}, nil
}

// Authenticate validates a raw bearer token.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (*Claims, error) {
	return s.parseToken(raw)
}

func passcodeMatches(secret, given string) bool {
	if strings.HasPrefix(secret, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(secret), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(given)) == 1
}

func (s *AuthService) generateToken() (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.config.TokenTTL)
	claims := Claims{
		Role:      RoleTeacher,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   RoleTeacher,
			Issuer:    s.config.JWTIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := token.SignedString(s.config.JWTSecret)
	if err != nil {
		return "", time.Time{}, pkgerrors.Wrap(fmt.Errorf("sign token failed: %w", err), pkgerrors.TokenGenerationFailed)
	}
	return raw, expiresAt, nil
}

func (s *AuthService) parseToken(raw string) (*Claims, error) {
	if raw == "" {
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.config.JWTSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, pkgerrors.New(pkgerrors.TokenExpired)
		}
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	if claims.Issuer != s.config.JWTIssuer || claims.TokenType != tokenTypeAccess || claims.Role != RoleTeacher {
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	return claims, nil
}
