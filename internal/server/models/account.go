package models

import "time"

// Account is a registered principal. Role never changes after creation.
type Account struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	PhoneNo       string    `json:"phone_no"`
	Role          Role      `json:"role"`
	PasswordHash  string    `json:"-"`
	EmailVerified bool      `json:"is_email_verified"`
	QRCode        string    `json:"qr_code"`
	Rewards       int64     `json:"rewards"`
	CreatedAt     time.Time `json:"created_at"`
}
