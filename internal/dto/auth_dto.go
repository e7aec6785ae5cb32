package dto

import (
	"github.com/foodcourt/storefront-api/internal/models"
	"github.com/google/uuid"
)

type RegisterRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Email       string `json:"email" validate:"required,email,max=255"`
	Phone       string `json:"phone" validate:"required,numeric,min=10,max=15"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	AddressLine string `json:"address_line" validate:"required,max=255"`
	City        string `json:"city" validate:"required,max=100"`
	State       string `json:"state" validate:"required,max=100"`
	Pincode     string `json:"pincode" validate:"required,numeric,min=4,max=12"`
}

type LoginRequest struct {
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UpdateAddressRequest struct {
	AddressLine string `json:"address_line" validate:"required,max=255"`
	City        string `json:"city" validate:"required,max=100"`
	State       string `json:"state" validate:"required,max=100"`
	Pincode     string `json:"pincode" validate:"required,numeric,min=4,max=12"`
}

type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresAt   int64        `json:"expires_at"`
	User        UserResponse `json:"user"`
}

type RefreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

type RegisterResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

type UserResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Role        string    `json:"role"`
	AddressLine string    `json:"address_line"`
	City        string    `json:"city"`
	State       string    `json:"state"`
	Pincode     string    `json:"pincode"`
}

func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Phone:       u.Phone,
		Role:        u.Role,
		AddressLine: u.AddressLine,
		City:        u.City,
		State:       u.State,
		Pincode:     u.Pincode,
	}
}

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
}
