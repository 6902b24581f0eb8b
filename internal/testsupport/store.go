package testsupport

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"satpipe/internal/config"
	"satpipe/internal/filestate"
	"satpipe/internal/metadata"
)

// MustOpenStore opens a metadata.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *metadata.Store {
	t.Helper()

	store, err := metadata.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("metadata.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// Record describes a record seeded with SeedRecord.
type Record struct {
	ProductTypeID int64
	AreaID        int64
	DateTime      string
	Status        filestate.Status
}

// SeedRecord loads a small artifact for r directly in r.Status (to_load when
// unset) and returns the record id. Seeded records have never been processed.
func SeedRecord(t testing.TB, store *metadata.Store, r Record) int64 {
	t.Helper()

	ctx := context.Background()
	dt, err := time.Parse(metadata.DateTimeLayout, r.DateTime)
	if err != nil {
		t.Fatalf("parse date_time %q: %v", r.DateTime, err)
	}
	status := r.Status
	if status == "" {
		status = filestate.StatusToLoad
	}
	md := metadata.Metadata{
		ProductTypeID: r.ProductTypeID,
		DateTime:      dt,
		Status:        status,
	}
	if r.AreaID != 0 {
		area := r.AreaID
		md.AreaID = &area
	}

	src := filepath.Join(t.TempDir(), "seed.bin")
	WriteText(t, src, r.DateTime)
	id, err := store.Load(ctx, md, src)
	if err != nil {
		t.Fatalf("store.Load: %v", err)
	}
	return id
}
