package credential

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	api_models "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Models/api"
)

// ErrInvalidCredential is wrapped by every Verify failure
var ErrInvalidCredential = errors.New("invalid credential")

// issuedLayouts are tried in order when parsing the valability claim
var issuedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// Codec mints and verifies HS256 chip credentials. It checks authenticity
// only; freshness and registry membership are the caller's concern.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// Option configures a Codec
type Option func(*Codec)

// WithClock overrides the issuance clock
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec creates a new credential codec
func NewCodec(config api_models.Config, opts ...Option) (*Codec, error) {
	if config.SecretKey == "" {
		return nil, errors.New("credential secret must not be empty")
	}
	c := &Codec{
		secret: []byte(config.SecretKey),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Mint signs a claim binding chipID to the current instant
func (c *Codec) Mint(chipID string) (string, error) {
	if chipID == "" {
		return "", errors.New("chip id must not be empty")
	}

	claims := api_models.ChipClaims{
		ChipID:     chipID,
		Valability: c.now().UTC().Format(time.RFC3339Nano),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign credential: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and structure of a credential
func (c *Codec) Verify(tokenString string) (*api_models.ChipClaims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: missing token", ErrInvalidCredential)
	}

	token, err := jwt.ParseWithClaims(tokenString, &api_models.ChipClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	claims, ok := token.Claims.(*api_models.ChipClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", ErrInvalidCredential)
	}
	if claims.ChipID == "" {
		return nil, fmt.Errorf("%w: chip_id claim is required", ErrInvalidCredential)
	}

	issued, err := parseIssued(claims.Valability)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	claims.Issued = issued

	return claims, nil
}

func parseIssued(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("valability claim is required")
	}
	for _, layout := range issuedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("valability %q is not an ISO-8601 instant", value)
}
