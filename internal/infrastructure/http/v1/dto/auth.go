package dto

import (
	"time"

	"bread/internal/domain/auth"
)

// LoginRequest for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ToCredentials converts to domain credentials.
func (r *LoginRequest) ToCredentials() auth.Credentials {
	return auth.Credentials{Email: r.Email, Password: r.Password}
}

// TokenResponse carries an issued access token.
type TokenResponse struct {
	AccessToken string       `json:"accessToken"`
	TokenType   string       `json:"tokenType"`
	ExpiresAt   time.Time    `json:"expiresAt"`
	User        UserResponse `json:"user"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	FullName    string   `json:"fullName,omitempty"`
	IsAdmin     bool     `json:"isAdmin"`
	Permissions []string `json:"permissions,omitempty"`
}

// FromToken builds the login response.
func FromToken(t *auth.Token, u *auth.User) TokenResponse {
	return TokenResponse{
		AccessToken: t.AccessToken,
		TokenType:   t.TokenType,
		ExpiresAt:   t.ExpiresAt,
		User:        FromUser(u),
	}
}

// FromUser builds the public view of u.
func FromUser(u *auth.User) UserResponse {
	return UserResponse{
		ID:          u.ID.String(),
		Email:       u.Email,
		FullName:    u.FullName,
		IsAdmin:     u.IsAdmin,
		Permissions: u.Permissions,
	}
}
