package memory

import (
	"context"
	"sync"
	"time"

	mqtmodels "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Models"
	interfaces "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Repository/Interfaces"
)

// RegistryRepository is an in-process device registry.
type RegistryRepository struct {
	mu          sync.RWMutex
	devices     map[string]*mqtmodels.Device
	blacklisted map[string]time.Time

	// FailWith, when set, is returned by every call. Tests use it to
	// simulate an unreachable database.
	FailWith error
}

func NewRegistryRepository() *RegistryRepository {
	return &RegistryRepository{
		devices:     make(map[string]*mqtmodels.Device),
		blacklisted: make(map[string]time.Time),
	}
}

func (r *RegistryRepository) IsBlacklisted(_ context.Context, chipID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.FailWith != nil {
		return false, r.FailWith
	}
	_, ok := r.blacklisted[chipID]
	return ok, nil
}

func (r *RegistryRepository) IsRegistered(_ context.Context, chipID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.FailWith != nil {
		return false, r.FailWith
	}
	_, ok := r.devices[chipID]
	return ok, nil
}

func (r *RegistryRepository) GetDevice(_ context.Context, chipID string) (*mqtmodels.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.FailWith != nil {
		return nil, r.FailWith
	}
	d, ok := r.devices[chipID]
	if !ok {
		return nil, interfaces.ErrDeviceNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *RegistryRepository) Register(_ context.Context, chipID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return false, r.FailWith
	}
	if _, ok := r.devices[chipID]; ok {
		return false, nil
	}
	r.devices[chipID] = &mqtmodels.Device{ChipID: chipID, CreatedAt: time.Now().UTC()}
	return true, nil
}

func (r *RegistryRepository) Blacklist(_ context.Context, chipID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return false, r.FailWith
	}
	if _, ok := r.blacklisted[chipID]; ok {
		return false, nil
	}
	r.blacklisted[chipID] = time.Now().UTC()
	return true, nil
}

// Seed registers and blacklists chips directly, bypassing admission.
// It models out-of-band administrative edits.
func (r *RegistryRepository) Seed(registered, blacklisted []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range registered {
		r.devices[id] = &mqtmodels.Device{ChipID: id, CreatedAt: time.Now().UTC()}
	}
	for _, id := range blacklisted {
		r.blacklisted[id] = time.Now().UTC()
	}
}

func (r *RegistryRepository) MarkTokenIssued(_ context.Context, chipID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	if d, ok := r.devices[chipID]; ok {
		t := at.UTC()
		d.LastTokenIssuedAt = &t
	}
	return nil
}

func (r *RegistryRepository) MarkLastNetwork(_ context.Context, chipID, networkID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	if d, ok := r.devices[chipID]; ok {
		n := networkID
		d.LastNetworkID = &n
	}
	return nil
}

func (r *RegistryRepository) Ping(_ context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.FailWith
}
