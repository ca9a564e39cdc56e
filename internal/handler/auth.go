package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"

	"github.com/partstore/storefront/internal/domain/order"
)

// RoleAdmin is the role claim value granting access to admin routes.
const RoleAdmin = "admin"

const principalKey = "principal"

// Claims are the JWT claims issued by the storefront identity service. The
// user id travels in the standard "sub" claim.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID string
	Role   string
}

// IsAdmin reports whether the caller holds the admin role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

func (p Principal) requester() order.Requester {
	return order.Requester{UserID: p.UserID, Admin: p.IsAdmin()}
}

// Authenticator validates HS256 bearer tokens.
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

// NewAuthenticator creates an Authenticator for tokens signed with secret.
func NewAuthenticator(secret []byte) *Authenticator {
	return &Authenticator{
		secret: secret,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

// Parse validates a raw token and returns its principal.
func (a *Authenticator) Parse(raw string) (Principal, error) {
	var claims Claims
	_, err := a.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return Principal{}, errors.Wrap(err, "parse token")
	}
	if claims.Subject == "" {
		return Principal{}, errors.New("token has no subject")
	}
	return Principal{UserID: claims.Subject, Role: claims.Role}, nil
}

// RequireUser rejects requests without a valid bearer token and stores the
// principal for later handlers.
func (a *Authenticator) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || raw == "" {
			unauthorized(c, "missing bearer token")
			return
		}
		p, err := a.Parse(strings.TrimSpace(raw))
		if err != nil {
			unauthorized(c, "invalid token")
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// RequireAdmin allows only admins. It must run after RequireUser.
func (a *Authenticator) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principalFrom(c)
		if !ok {
			unauthorized(c, "missing bearer token")
			return
		}
		if !p.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{
				Code:    http.StatusForbidden,
				Message: "admin access required",
			})
			return
		}
		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{
		Code:    http.StatusUnauthorized,
		Message: msg,
	})
}

func principalFrom(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// rateLimitKey keys the limiter by user when authenticated and by client IP
// otherwise.
func rateLimitKey(c *gin.Context) string {
	if p, ok := principalFrom(c); ok {
		return "user:" + p.UserID
	}
	return "ip:" + c.ClientIP()
}
