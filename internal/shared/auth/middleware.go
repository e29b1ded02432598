package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/maiphun1412/thietbi-dientu-backend/internal/shared/errors"
)

const claimsContextKey = "auth.claims"

// ExtractToken pulls the bearer token from the Authorization header or,
// failing that, the access_token cookie.
func ExtractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := c.Cookie("access_token"); err == nil {
		return cookie
	}
	return ""
}

// Middleware validates the request token and stores the claims in the gin
// context. Requests without a valid token are rejected with a 401 problem.
func Middleware(tokens *TokenService, responder *apperrors.Responder) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c)
		if token == "" {
			responder.Respond(c, apperrors.ErrUnauthorized.WithDetail("missing access token"))
			c.Abort()
			return
		}
		claims, err := tokens.Validate(token)
		if err != nil {
			detail := "invalid access token"
			if err == ErrExpiredToken {
				detail = "access token expired"
			}
			responder.Respond(c, apperrors.ErrUnauthorized.WithDetail(detail))
			c.Abort()
			return
		}
		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

// OptionalMiddleware stores claims when a valid token is present but
// lets anonymous requests through. Handlers that serve both customers
// and guests (the OTP endpoints) decide access themselves.
func OptionalMiddleware(tokens *TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := ExtractToken(c); token != "" {
			if claims, err := tokens.Validate(token); err == nil {
				c.Set(claimsContextKey, claims)
			}
		}
		c.Next()
	}
}

// RequireRole rejects authenticated requests whose role is not in the
// allowed set. Must run after Middleware.
func RequireRole(responder *apperrors.Responder, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := FromContext(c)
		if claims == nil {
			responder.Respond(c, apperrors.ErrUnauthorized)
			c.Abort()
			return
		}
		for _, role := range roles {
			if claims.Role == role {
				c.Next()
				return
			}
		}
		responder.Respond(c, apperrors.ErrForbidden.WithDetail("insufficient role"))
		c.Abort()
	}
}

// FromContext returns the validated claims stored by Middleware, or nil.
func FromContext(c *gin.Context) *Claims {
	value, ok := c.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, ok := value.(*Claims)
	if !ok {
		return nil
	}
	return claims
}
