package handler

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"skillexchange/internal/config"
	"skillexchange/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleAdmin = "admin"

	identityKey = "identity"
)

var errInvalidToken = errors.New("invalid token")

// Identity is the caller proven by a bearer token.
type Identity struct {
	UserID int64
	Role   string
}

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Authenticator issues and checks HS256 tokens whose subject is the numeric user id.
type Authenticator struct {
	secret []byte
	issuer string
}

func NewAuthenticator(cfg *config.AuthConfig) *Authenticator {
	return &Authenticator{secret: []byte(cfg.Secret), issuer: cfg.Issuer}
}

func (a *Authenticator) IssueToken(userID int64, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(a.secret)
}

func (a *Authenticator) ValidateToken(token string) (*Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return nil, errInvalidToken
	}
	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, errInvalidToken
	}
	return &Identity{UserID: userID, Role: c.Role}, nil
}

// Middleware rejects requests without a valid bearer token.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			response.Unauthorized(c, "missing bearer token")
			return
		}
		identity, err := a.ValidateToken(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

func identityFrom(c *gin.Context) (*Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*Identity)
	return identity, ok
}

// actAs reports whether the caller may act for userID, writing 403 when not.
// Without authentication every caller may act for anyone.
func actAs(c *gin.Context, userID int64) bool {
	identity, ok := identityFrom(c)
	if !ok {
		return true
	}
	if identity.UserID != userID && identity.Role != RoleAdmin {
		response.Forbidden(c, "cannot act on behalf of another user")
		return false
	}
	return true
}

func requireAdmin(c *gin.Context) bool {
	identity, ok := identityFrom(c)
	if !ok {
		return true
	}
	if identity.Role != RoleAdmin {
		response.Forbidden(c, "admin role required")
		return false
	}
	return true
}
