package domain

import "time"

// Profile is user metadata keyed by wallet address.
type Profile struct {
	Wallet      string    `json:"wallet_address"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Verified    bool      `json:"is_verified"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
