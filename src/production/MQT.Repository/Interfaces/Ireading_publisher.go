package interfaces

import (
	"context"

	mqtmodels "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Models"
)

// ReadingPublisher fans accepted readings out to downstream consumers
type ReadingPublisher interface {
	Publish(ctx context.Context, reading mqtmodels.Reading) error
}
