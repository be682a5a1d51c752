package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrInvalidToken = errors.New("invalid token")
)

// UserClaims claims of the platform session token. Tokens are issued by the account service,
// this service only verifies them.
type UserClaims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"uid"`
}

func GenerateUserJWT(userID int64, expire time.Duration, key []byte) (string, error) {
	userClaims := UserClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expire)),
		},
		UserID: userID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, userClaims)
	tokenString, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("generating user jwt token: %s", err.Error())
	}
	return tokenString, nil
}

// ParseUserJWT verifies the signature and expiry and returns the claims.
func ParseUserJWT(tokenString string, key []byte) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, new(UserClaims), func(_ *jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err.Error())
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok || claims.UserID <= 0 {
		return nil, fmt.Errorf("%w: bad claims", ErrInvalidToken)
	}
	return claims, nil
}
