package implementation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	interfaces "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Repository/Interfaces"
	_ "modernc.org/sqlite"
)

// openTestDB returns an in-memory SQLite database with the registry schema.
// The connection is closed automatically when the test finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:registry_%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)", name)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("openTestDB: sql.Open: %v", err)
	}
	db.SetMaxOpenConns(1)

	if err := CreateRegistryTables(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("openTestDB: create tables: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestRebind(t *testing.T) {
	q := `UPDATE producers SET ssid = ? WHERE chip_id = ?`
	if got := rebind(DialectPostgres, q); got != `UPDATE producers SET ssid = $1 WHERE chip_id = $2` {
		t.Errorf("postgres rebind = %q", got)
	}
	if got := rebind(DialectSQLite, q); got != q {
		t.Errorf("sqlite rebind changed query: %q", got)
	}
}

func TestSQLRegistry_RegisterIsUniqueKeyed(t *testing.T) {
	repo := NewSQLRegistryRepository(openTestDB(t), DialectSQLite)
	ctx := context.Background()

	created, err := repo.Register(ctx, "123456789012345")
	if err != nil || !created {
		t.Fatalf("first Register = %v, %v", created, err)
	}

	created, err = repo.Register(ctx, "123456789012345")
	if err != nil {
		t.Fatalf("duplicate Register must not fail: %v", err)
	}
	if created {
		t.Error("duplicate Register reported created=true")
	}

	ok, err := repo.IsRegistered(ctx, "123456789012345")
	if err != nil || !ok {
		t.Fatalf("IsRegistered = %v, %v", ok, err)
	}
	ok, err = repo.IsBlacklisted(ctx, "123456789012345")
	if err != nil || ok {
		t.Fatalf("IsBlacklisted = %v, %v", ok, err)
	}
}

func TestSQLRegistry_Blacklist(t *testing.T) {
	repo := NewSQLRegistryRepository(openTestDB(t), DialectSQLite)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := repo.Blacklist(ctx, "abc"); err != nil {
			t.Fatalf("Blacklist #%d: %v", i, err)
		}
	}

	ok, err := repo.IsBlacklisted(ctx, "abc")
	if err != nil || !ok {
		t.Fatalf("IsBlacklisted = %v, %v", ok, err)
	}
	ok, err = repo.IsRegistered(ctx, "abc")
	if err != nil || ok {
		t.Fatalf("IsRegistered = %v, %v", ok, err)
	}
}

func TestSQLRegistry_Metadata(t *testing.T) {
	repo := NewSQLRegistryRepository(openTestDB(t), DialectSQLite)
	ctx := context.Background()

	if _, err := repo.Register(ctx, "123456789012345"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	device, err := repo.GetDevice(ctx, "123456789012345")
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if device.LastTokenIssuedAt != nil || device.LastNetworkID != nil {
		t.Fatalf("fresh device should have no metadata: %+v", device)
	}

	issued := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)
	if err := repo.MarkTokenIssued(ctx, "123456789012345", issued); err != nil {
		t.Fatalf("MarkTokenIssued: %v", err)
	}
	if err := repo.MarkLastNetwork(ctx, "123456789012345", "field-ap"); err != nil {
		t.Fatalf("MarkLastNetwork: %v", err)
	}

	device, err = repo.GetDevice(ctx, "123456789012345")
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if device.LastTokenIssuedAt == nil || !device.LastTokenIssuedAt.Equal(issued) {
		t.Errorf("last token issued = %v, want %v", device.LastTokenIssuedAt, issued)
	}
	if device.LastNetworkID == nil || *device.LastNetworkID != "field-ap" {
		t.Errorf("last network = %v", device.LastNetworkID)
	}

	if _, err := repo.GetDevice(ctx, "999"); !errors.Is(err, interfaces.ErrDeviceNotFound) {
		t.Errorf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestSQLRegistry_ConcurrentRegisterSameChip(t *testing.T) {
	repo := NewSQLRegistryRepository(openTestDB(t), DialectSQLite)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	errs := make([]error, 0)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := repo.Register(ctx, "555555555555555")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
			}
			if created {
				createdCount++
			}
		}()
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("concurrent Register errors: %v", errs)
	}
	if createdCount != 1 {
		t.Fatalf("expected exactly one insert to win, got %d", createdCount)
	}
}
