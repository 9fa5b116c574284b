package models

import (
	"time"
)

// SocialAccount holds the encrypted channel credentials another subsystem
// stored for an owner. This service only reads it.
type SocialAccount struct {
	ID             int64     `db:"id" json:"id"`
	OwnerID        string    `db:"owner_id" json:"owner_id"`
	Platform       string    `db:"platform" json:"platform"`
	AccountID      string    `db:"account_id" json:"account_id"`
	AccountName    string    `db:"account_name" json:"account_name"`
	AccessToken    string    `db:"access_token" json:"-"`
	RefreshToken   string    `db:"refresh_token" json:"-"`
	TokenExpiresAt time.Time `db:"token_expires_at" json:"token_expires_at"`
	AccountStatus  string    `db:"account_status" json:"account_status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
