package models

import "time"

const (
	// OTPLength is the number of digits in a one-time code.
	OTPLength = 4
	// OTPValidity is how long an issued code stays usable.
	OTPValidity = 10 * time.Minute
)

// OneTimeCode is one entry of the per-email code log. Only the most recently
// issued entry for an email is ever considered.
type OneTimeCode struct {
	ID         int64
	Email      string
	Code       string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}

func (c *OneTimeCode) Consumed() bool {
	return c.ConsumedAt != nil
}

// Expired reports whether now is strictly past the expiry instant.
func (c *OneTimeCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
