package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MarceloDuretti/Financeiro-sub001/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoSession means the request carries no token at all.
	ErrNoSession = errors.New("no session token")
	// ErrInvalidToken covers bad signatures, expiry and issuer/audience mismatches.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Claims represents the JWT claims
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenService issues and validates session tokens. The same token travels
// as a cookie for browsers and as a Bearer header for API clients.
type TokenService struct {
	secret     []byte
	issuer     string
	audience   string
	ttl        time.Duration
	cookieName string
	now        func() time.Time
}

func NewTokenService(cfg config.AuthConfig) *TokenService {
	return &TokenService{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		ttl:        cfg.TokenTTL,
		cookieName: cfg.CookieName,
		now:        time.Now,
	}
}

func (s *TokenService) CookieName() string  { return s.cookieName }
func (s *TokenService) TTL() time.Duration { return s.ttl }

// GenerateToken generates a JWT token for the given user
func (s *TokenService) GenerateToken(userID, email string) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TokenFromRequest looks at the session cookie, then the Authorization
// header, then the token query parameter (browsers cannot set headers on
// a WebSocket handshake).
func (s *TokenService) TokenFromRequest(r *http.Request) string {
	if ck, err := r.Cookie(s.cookieName); err == nil && ck.Value != "" {
		return ck.Value
	}
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return r.URL.Query().Get("token")
}

// ResolveSession returns the user id behind the request's session.
func (s *TokenService) ResolveSession(r *http.Request) (string, error) {
	raw := s.TokenFromRequest(r)
	if raw == "" {
		return "", ErrNoSession
	}
	claims, err := s.ValidateToken(raw)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// SessionCookie builds the cookie carrying token. An empty token with a
// negative max age clears it.
func (s *TokenService) SessionCookie(token string, secure bool) *http.Cookie {
	maxAge := int(s.ttl / time.Second)
	if token == "" {
		maxAge = -1
	}
	return &http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
