package model

import (
	"time"

	"github.com/golang-jwt/jwt"
)

// User is an operator account; session issuance lives in a separate service,
// this API only verifies tokens and resolves the user.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	UserName  string    `json:"user_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserClaims are the JWT claims issued by the auth service.
type UserClaims struct {
	UserName string `json:"user_name"`
	jwt.StandardClaims
}
