package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/patrimonio/patrimonio-webapi/internal/models"
)

var (
	ErrMissingToken = errors.New("authorization token missing")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// TokenService issues and validates HMAC-signed bearer tokens.
type TokenService struct {
	opts Options
	ttl  time.Duration
	now  func() time.Time
}

type TokenOption func(*TokenService)

// WithTimeFunc overrides the clock used for issuing and validating tokens.
func WithTimeFunc(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		s.now = now
	}
}

func NewTokenService(opts Options, ttl time.Duration, options ...TokenOption) *TokenService {
	s := &TokenService{opts: opts, ttl: ttl, now: time.Now}
	for _, o := range options {
		o(s)
	}
	return s
}

func (s *TokenService) Issue(user *models.User) (string, error) {
	if user == nil {
		return "", errors.New("cannot issue token for nil user")
	}
	now := s.now()
	claims := models.TokenClaims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.opts.Issuer,
			Subject:   strconv.Itoa(int(user.ID)),
			Audience:  jwt.ClaimStrings{s.opts.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.opts.SigningKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Validate checks the signature, then issuer, audience and lifetime (with the
// configured clock skew), and returns the principal the token describes.
func (s *TokenService) Validate(tokenStr string) (*models.Principal, error) {
	if tokenStr == "" {
		return nil, ErrMissingToken
	}

	var claims models.TokenClaims
	_, err := jwt.ParseWithClaims(tokenStr, &claims,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.opts.SigningKey, nil
		},
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithIssuer(s.opts.Issuer),
		jwt.WithAudience(s.opts.Audience),
		jwt.WithLeeway(s.opts.ClockSkew),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, claims.Subject)
	}
	return &models.Principal{UserID: int32(id), Email: claims.Email, Role: claims.Role}, nil
}
