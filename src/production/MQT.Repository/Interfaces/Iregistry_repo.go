package interfaces

import (
	"context"
	"errors"
	"time"

	mqtmodels "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Models"
)

// ErrDeviceNotFound is returned by GetDevice for unregistered chips
var ErrDeviceNotFound = errors.New("device not found")

type RegistryRepository interface {
	// Lookups
	IsBlacklisted(ctx context.Context, chipID string) (bool, error)
	IsRegistered(ctx context.Context, chipID string) (bool, error)
	GetDevice(ctx context.Context, chipID string) (*mqtmodels.Device, error)

	// Admission (unique-key inserts; a duplicate reports created=false)
	Register(ctx context.Context, chipID string) (created bool, err error)
	Blacklist(ctx context.Context, chipID string) (created bool, err error)

	// Metadata
	MarkTokenIssued(ctx context.Context, chipID string, at time.Time) error
	MarkLastNetwork(ctx context.Context, chipID, networkID string) error

	Ping(ctx context.Context) error
}
