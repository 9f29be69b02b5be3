package api_models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config holds credential codec configuration
type Config struct {
	SecretKey string
}

// ChipClaims is the signed device claim. Valability carries the issuance
// instant as an ISO-8601 string; firmware mints its bootstrap credential
// with the same layout.
type ChipClaims struct {
	jwt.RegisteredClaims
	ChipID     string `json:"chip_id"`
	Valability string `json:"valability"`

	// Issued is Valability parsed by the codec
	Issued time.Time `json:"-"`
}
