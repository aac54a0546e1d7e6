package handlers

import (
	"github.com/pribylovaa/go-fitness-tracker/internal/models"
	"github.com/pribylovaa/go-fitness-tracker/internal/service"
)

type registerRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

func (r registerRequest) toInput() service.RegisterInput {
	return service.RegisterInput{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Username:  r.Username,
		Email:     r.Email,
		Password:  r.Password,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type accountResponse struct {
	ID           string   `json:"id"`
	FullName     string   `json:"fullName"`
	Username     string   `json:"username"`
	Email        string   `json:"email"`
	Roles        []string `json:"roles"`
	Status       string   `json:"status"`
	RegisteredAt int64    `json:"registeredAt"` // Unix UTC
}

type authResponse struct {
	AccessToken     string           `json:"accessToken"`
	AccessExpiresAt int64            `json:"accessExpiresAt"` // Unix UTC
	User            *accountResponse `json:"user,omitempty"`
}

func accountFromView(v *models.AccountView) *accountResponse {
	if v == nil {
		return nil
	}

	roles := v.Roles
	if roles == nil {
		roles = []string{}
	}

	return &accountResponse{
		ID:           v.ID.String(),
		FullName:     v.FullName,
		Username:     v.Username,
		Email:        v.Email,
		Roles:        roles,
		Status:       string(v.Status),
		RegisteredAt: v.RegisteredAt.UTC().Unix(),
	}
}

func authFromResult(res *models.AuthResult) authResponse {
	return authResponse{
		AccessToken:     res.Tokens.AccessToken,
		AccessExpiresAt: res.Tokens.AccessExpiresAt.UTC().Unix(),
		User:            accountFromView(res.Account),
	}
}
