package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.ApiService/implementation/credential"
	logger "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Logger"
	metrics "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Metrics"
	mqtmodels "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Models"
	api_models "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Models/api"
	interfaces "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Repository/Interfaces"
)

const (
	opRequestAccess = "request_access"
	opIssueToken    = "issue_token"
	opIngest        = "ingest"
)

// Config holds the admission rules
type Config struct {
	Policy          mqtmodels.ChipIDPolicy
	FreshnessWindow time.Duration
	MaxClockSkew    time.Duration
}

// Service decides whether a chip may register, obtain a token or write readings
type Service struct {
	registry  interfaces.RegistryRepository
	series    interfaces.SeriesRepository
	codec     *credential.Codec
	publisher interfaces.ReadingPublisher
	cfg       Config
	now       func() time.Time
	log       *logger.Logger
}

// Option configures a Service
type Option func(*Service)

// WithPublisher relays every accepted reading
func WithPublisher(p interfaces.ReadingPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock overrides the clock used for freshness and point timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(
	registry interfaces.RegistryRepository,
	series interfaces.SeriesRepository,
	codec *credential.Codec,
	cfg Config,
	log *logger.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		registry: registry,
		series:   series,
		codec:    codec,
		cfg:      cfg,
		now:      time.Now,
		log:      log.WithComponent("admission"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestAccess registers a chip at first contact, or blacklists it when its
// id fails the chip id policy. The credential is only decoded, never checked
// for freshness. Repeating the call for a registered chip re-ensures its
// series and succeeds.
func (s *Service) RequestAccess(ctx context.Context, token string) (err error) {
	defer func() { s.record(opRequestAccess, err) }()

	claims, err := s.verify(token)
	if err != nil {
		return err
	}
	chipID := claims.ChipID
	log := s.log.WithChip(chipID)

	blacklisted, err := s.registry.IsBlacklisted(ctx, chipID)
	if err != nil {
		return fmt.Errorf("check blacklist: %w", err)
	}
	if blacklisted {
		return ErrBlacklisted
	}

	if !s.cfg.Policy.Allows(chipID) {
		if _, err := s.registry.Blacklist(ctx, chipID); err != nil {
			return fmt.Errorf("blacklist chip: %w", err)
		}
		log.WithField("policy", s.cfg.Policy.Name).Warn("chip id rejected and blacklisted")
		return ErrRejectedAndBlacklisted
	}

	created, err := s.registry.Register(ctx, chipID)
	if err != nil {
		return fmt.Errorf("register chip: %w", err)
	}
	if err := s.series.EnsureSeries(ctx, chipID, mqtmodels.AllMetrics); err != nil {
		return fmt.Errorf("initialize series: %w", err)
	}

	if created {
		log.Info("chip registered")
	} else {
		log.Debug("chip already registered")
	}
	return nil
}

// IssueToken mints a fresh credential for a registered chip. Registration is
// checked before the blacklist.
func (s *Service) IssueToken(ctx context.Context, token string) (_ string, err error) {
	defer func() { s.record(opIssueToken, err) }()

	claims, err := s.verify(token)
	if err != nil {
		return "", err
	}
	chipID := claims.ChipID

	registered, err := s.registry.IsRegistered(ctx, chipID)
	if err != nil {
		return "", fmt.Errorf("check registration: %w", err)
	}
	if !registered {
		return "", ErrNotRegistered
	}

	blacklisted, err := s.registry.IsBlacklisted(ctx, chipID)
	if err != nil {
		return "", fmt.Errorf("check blacklist: %w", err)
	}
	if blacklisted {
		return "", ErrAlreadyBlacklisted
	}

	issued, err := s.codec.Mint(chipID)
	if err != nil {
		return "", fmt.Errorf("mint token: %w", err)
	}

	if err := s.registry.MarkTokenIssued(ctx, chipID, s.now()); err != nil {
		s.log.WithChip(chipID).WarnWithError(err, "failed to record token issuance")
	}
	return issued, nil
}

// Ingest stores one reading for a registered chip holding a fresh credential
// and returns the decoded body for echoing.
func (s *Service) Ingest(ctx context.Context, token string, body []byte) (_ map[string]interface{}, err error) {
	defer func() { s.record(opIngest, err) }()

	claims, err := s.verify(token)
	if err != nil {
		return nil, err
	}
	chipID := claims.ChipID

	blacklisted, err := s.registry.IsBlacklisted(ctx, chipID)
	if err != nil {
		return nil, fmt.Errorf("check blacklist: %w", err)
	}
	if blacklisted {
		return nil, ErrBlacklisted
	}

	registered, err := s.registry.IsRegistered(ctx, chipID)
	if err != nil {
		return nil, fmt.Errorf("check registration: %w", err)
	}
	now := s.now()
	if !registered || !s.fresh(claims.Issued, now) {
		return nil, ErrInvalidOrExpiredCredential
	}

	raw, values, ssid, err := mqtmodels.ParseReading(body)
	switch {
	case errors.Is(err, mqtmodels.ErrEmptyReading):
		return nil, ErrMissingBody
	case errors.Is(err, mqtmodels.ErrMetricNotNumeric):
		return nil, fmt.Errorf("%w: %w", ErrInvalidReading, err)
	case err != nil:
		return nil, err
	}

	timestampMs := now.UnixMilli()
	if err := s.series.AppendBatch(ctx, chipID, timestampMs, values); err != nil {
		return nil, fmt.Errorf("append reading: %w", err)
	}
	metrics.PointsWrittenTotal.Add(float64(len(values)))

	log := s.log.WithChip(chipID)
	if ssid != nil {
		if err := s.registry.MarkLastNetwork(ctx, chipID, *ssid); err != nil {
			log.WarnWithError(err, "failed to record last network")
		}
	}

	if s.publisher != nil {
		reading := mqtmodels.Reading{ChipID: chipID, TimestampMs: timestampMs, Values: values, SSID: ssid}
		if err := s.publisher.Publish(ctx, reading); err != nil {
			log.WarnWithError(err, "failed to relay reading")
		}
	}

	return raw, nil
}

// fresh reports whether issued lies in (now-window, now+skew]
func (s *Service) fresh(issued, now time.Time) bool {
	if !issued.After(now.Add(-s.cfg.FreshnessWindow)) {
		return false
	}
	return !issued.After(now.Add(s.cfg.MaxClockSkew))
}

func (s *Service) verify(token string) (*api_models.ChipClaims, error) {
	claims, err := s.codec.Verify(token)
	if err != nil {
		s.log.WithError(err).Debug("credential rejected")
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}
	return claims, nil
}

func (s *Service) record(operation string, err error) {
	outcome := "accepted"
	var admissionErr *Error
	switch {
	case err == nil:
	case errors.As(err, &admissionErr):
		outcome = admissionErr.Kind
	default:
		outcome = "error"
	}
	metrics.RecordOutcome(operation, outcome)
}
