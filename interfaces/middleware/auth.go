package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"

	"insight-hub/domain/model"
	"insight-hub/domain/repository"
)

// Auth validates the bearer token and stores the caller's user id on the
// request context under "user_id".
func Auth(userRepository repository.IUser, secretKey string) gin.HandlerFunc {
	unauthorized := gin.H{"error": "unauthorized"}

	return func(ctx *gin.Context) {
		authorization := ctx.Request.Header.Get("Authorization")
		if authorization == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, unauthorized)
			return
		}
		parts := strings.Split(authorization, "Bearer ")
		if len(parts) != 2 {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, unauthorized)
			return
		}

		var userClaims model.UserClaims
		token, err := jwt.ParseWithClaims(parts[1], &userClaims, func(token *jwt.Token) (interface{}, error) {
			return []byte(secretKey), nil
		})
		if err != nil || !token.Valid {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": describeTokenError(err)})
			return
		}

		if _, err := userRepository.GetByUserName(ctx.Request.Context(), userClaims.UserName); err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, unauthorized)
			return
		}

		ctx.Set("user_id", userClaims.UserName)
		ctx.Next()
	}
}

func describeTokenError(err error) string {
	var ve *jwt.ValidationError
	if errors.As(err, &ve) {
		if ve.Errors&jwt.ValidationErrorMalformed != 0 {
			return "malformed token"
		}
		if ve.Errors&(jwt.ValidationErrorExpired|jwt.ValidationErrorNotValidYet) != 0 {
			return "token expired or not yet valid"
		}
		return fmt.Sprintf("invalid token: %v", err)
	}
	return "unauthorized"
}
