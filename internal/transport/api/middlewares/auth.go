package middlewares

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fsdevblog/zenauction/internal/transport/api/tokens"
	"github.com/gin-gonic/gin"
)

var ErrTokenNotExist = errors.New("token not exist")

const CurrentUserIDKey = "currentUserID"

// checkAuthorization extracts the bearer token from the Authorization header and verifies it.
// ErrTokenNotExist is returned when no token was sent.
func checkAuthorization(c *gin.Context, jwtTokenSecret []byte) (*tokens.UserClaims, error) {
	const bearer = "Bearer "
	tokenHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(tokenHeader, bearer) {
		return nil, ErrTokenNotExist
	}

	claims, err := tokens.ParseUserJWT(tokenHeader[len(bearer):], jwtTokenSecret)
	if err != nil {
		return nil, fmt.Errorf("check authorization: %w", err)
	}
	return claims, nil
}

// AuthRequired rejects requests without a valid session token and stores the user id in the
// context under CurrentUserIDKey.
func AuthRequired(jwtTokenSecret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := checkAuthorization(c, jwtTokenSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			if !errors.Is(err, ErrTokenNotExist) {
				_ = c.Error(err).SetType(gin.ErrorTypePrivate)
			}
			return
		}
		c.Set(CurrentUserIDKey, claims.UserID)
		c.Next()
	}
}
