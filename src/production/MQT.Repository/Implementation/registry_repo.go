package implementation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	mqtmodels "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Models"
	interfaces "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Repository/Interfaces"
)

type SQLRegistryRepository struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func NewSQLRegistryRepository(db *sql.DB, dialect Dialect) *SQLRegistryRepository {
	return &SQLRegistryRepository{db: db, dialect: dialect, now: time.Now}
}

func (r *SQLRegistryRepository) IsBlacklisted(ctx context.Context, chipID string) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM black_list_producers WHERE chip_id = ?`, chipID)
}

func (r *SQLRegistryRepository) IsRegistered(ctx context.Context, chipID string) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM producers WHERE chip_id = ?`, chipID)
}

func (r *SQLRegistryRepository) exists(ctx context.Context, query, chipID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, rebind(r.dialect, query), chipID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("registry lookup: %w", err)
	}
	return true, nil
}

// Register inserts the chip into producers; an existing row is left untouched
func (r *SQLRegistryRepository) Register(ctx context.Context, chipID string) (bool, error) {
	query := `
		INSERT INTO producers (chip_id, created_at_ms)
		VALUES (?, ?)
		ON CONFLICT (chip_id) DO NOTHING
	`
	return r.insert(ctx, query, chipID)
}

// Blacklist inserts the chip into black_list_producers; duplicates are no-ops
func (r *SQLRegistryRepository) Blacklist(ctx context.Context, chipID string) (bool, error) {
	query := `
		INSERT INTO black_list_producers (chip_id, created_at_ms)
		VALUES (?, ?)
		ON CONFLICT (chip_id) DO NOTHING
	`
	return r.insert(ctx, query, chipID)
}

func (r *SQLRegistryRepository) insert(ctx context.Context, query, chipID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, rebind(r.dialect, query), chipID, r.now().UTC().UnixMilli())
	if err != nil {
		return false, fmt.Errorf("registry insert: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("registry insert: %w", err)
	}
	return rowsAffected > 0, nil
}

func (r *SQLRegistryRepository) MarkTokenIssued(ctx context.Context, chipID string, at time.Time) error {
	query := `UPDATE producers SET last_token_issued_at_ms = ? WHERE chip_id = ?`
	if _, err := r.db.ExecContext(ctx, rebind(r.dialect, query), at.UTC().UnixMilli(), chipID); err != nil {
		return fmt.Errorf("mark token issued: %w", err)
	}
	return nil
}

func (r *SQLRegistryRepository) MarkLastNetwork(ctx context.Context, chipID, networkID string) error {
	query := `UPDATE producers SET ssid = ? WHERE chip_id = ?`
	if _, err := r.db.ExecContext(ctx, rebind(r.dialect, query), networkID, chipID); err != nil {
		return fmt.Errorf("mark last network: %w", err)
	}
	return nil
}

func (r *SQLRegistryRepository) GetDevice(ctx context.Context, chipID string) (*mqtmodels.Device, error) {
	query := `SELECT chip_id, last_token_issued_at_ms, ssid, created_at_ms FROM producers WHERE chip_id = ?`

	var device mqtmodels.Device
	var issuedMs sql.NullInt64
	var ssid sql.NullString
	var createdMs int64

	err := r.db.QueryRowContext(ctx, rebind(r.dialect, query), chipID).Scan(&device.ChipID, &issuedMs, &ssid, &createdMs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, interfaces.ErrDeviceNotFound
		}
		return nil, err
	}

	device.CreatedAt = time.UnixMilli(createdMs).UTC()
	if issuedMs.Valid {
		issued := time.UnixMilli(issuedMs.Int64).UTC()
		device.LastTokenIssuedAt = &issued
	}
	if ssid.Valid {
		device.LastNetworkID = &ssid.String
	}

	return &device, nil
}

func (r *SQLRegistryRepository) Ping(ctx context.Context) error {
	if r.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return r.db.PingContext(ctx)
}
