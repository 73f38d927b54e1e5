package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissing = errors.New("missing token")
	ErrExpired = errors.New("token expired")
	ErrInvalid = errors.New("invalid token")
)

// Claims is the verified identity carried by a token. Pure data; callers
// decide what to trust it for.
type Claims struct {
	UserID    int64
	Username  string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

func Issue(secret string, userID int64, username, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID,
		"name": username,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}

// Parse verifies signature and expiry and returns the claim set. The
// algorithm is pinned to HS256.
func Parse(secret, tokenStr string) (*Claims, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return nil, ErrMissing
	}

	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}
	if !tok.Valid {
		return nil, ErrInvalid
	}

	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalid
	}

	out := &Claims{}
	sub, ok := mc["sub"].(float64)
	if !ok || sub <= 0 {
		return nil, ErrInvalid
	}
	out.UserID = int64(sub)

	if s, ok := mc["name"].(string); ok {
		out.Username = s
	}
	if s, ok := mc["role"].(string); ok {
		out.Role = s
	}
	if f, ok := mc["iat"].(float64); ok {
		out.IssuedAt = time.Unix(int64(f), 0)
	}
	if f, ok := mc["exp"].(float64); ok {
		out.ExpiresAt = time.Unix(int64(f), 0)
	}
	return out, nil
}

// ParseAuthHeader accepts the raw Authorization header value, with or
// without the Bearer prefix.
func ParseAuthHeader(secret, authHeader string) (*Claims, error) {
	tokenStr := strings.TrimSpace(authHeader)
	if tokenStr == "" {
		return nil, ErrMissing
	}
	if strings.HasPrefix(strings.ToLower(tokenStr), "bearer ") {
		tokenStr = strings.TrimSpace(tokenStr[7:])
	}
	return Parse(secret, tokenStr)
}
