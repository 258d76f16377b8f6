package dto

import "time"

// AdminLoginDTO is used for incoming admin login requests
type AdminLoginDTO struct {
	Email string `json:"email" validate:"required,email"`
	PIN   string `json:"pin" validate:"required"`
}

type AdminSessionDTO struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
