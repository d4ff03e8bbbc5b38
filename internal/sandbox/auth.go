package sandbox

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const ownerContextKey = "sandbox.owner_id"

type Claims struct {
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 bearer tokens whose subject is the owner id.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *Tokens) Issue(ownerID string) (string, error) {
	if strings.TrimSpace(ownerID) == "" {
		return "", errors.New("owner id required")
	}
	now := t.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func (t *Tokens) Parse(tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return "", errors.New("invalid or expired token")
	}
	return claims.Subject, nil
}

// requireOwner verifies the bearer token and stores the owner claim on the
// gin context. A nil Tokens disables auth.
func requireOwner(t *Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		if t == nil {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		if len(header) <= 7 || !strings.EqualFold(header[:7], "Bearer ") {
			respondFailure(c, http.StatusUnauthorized, "UNAUTHORIZED", errors.New("missing or invalid token"))
			c.Abort()
			return
		}
		owner, err := t.Parse(header[7:])
		if err != nil {
			respondFailure(c, http.StatusUnauthorized, "UNAUTHORIZED", err)
			c.Abort()
			return
		}
		c.Set(ownerContextKey, owner)
		c.Next()
	}
}

// checkOwner rejects a request naming an owner other than the token's.
func checkOwner(c *gin.Context, ownerID string) bool {
	claimed, ok := c.Get(ownerContextKey)
	if !ok {
		return true
	}
	if claimed.(string) != ownerID {
		respondFailure(c, http.StatusForbidden, "FORBIDDEN", errors.New("owner mismatch"))
		return false
	}
	return true
}
