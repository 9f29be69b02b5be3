package mqtmodels

import "time"

// Device is a registered (admitted) chip
type Device struct {
	ChipID            string     `json:"chip_id" db:"chip_id"`
	LastTokenIssuedAt *time.Time `json:"last_token_issued_at,omitempty" db:"last_token_issued_at_ms"`
	LastNetworkID     *string    `json:"ssid,omitempty" db:"ssid"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at_ms"`
}

