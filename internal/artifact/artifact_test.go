package artifact_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"satpipe/internal/artifact"
	"satpipe/internal/config"
)

func TestLocalStorePutFetch(t *testing.T) {
	root := t.TempDir()
	store, err := artifact.NewLocalStore(root)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "scene.nc")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	location, err := store.Put(ctx, src, "ntf/2024/001/scene.nc")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if location != filepath.Join(root, "ntf", "2024", "001", "scene.nc") {
		t.Fatalf("location = %q", location)
	}

	dst := filepath.Join(t.TempDir(), "fetched")
	if err := store.Fetch(ctx, location, dst); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "payload" {
		t.Fatalf("fetched %q, err %v", data, err)
	}

	if err := store.Fetch(ctx, filepath.Join(root, "missing"), dst); !errors.Is(err, artifact.ErrMissing) {
		t.Fatalf("Fetch missing error = %v, want ErrMissing", err)
	}
	if _, err := store.Put(ctx, src, "../escape.nc"); err == nil {
		t.Fatal("expected key escaping the root to be rejected")
	}
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestSumAndVerify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	sum, err := artifact.Sum(path)
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	if len(sum) < 2 || sum[:2] != "Qm" {
		t.Fatalf("sha2-256 multihash should be a Qm base58 string, got %q", sum)
	}
	if err := artifact.Verify(path, sum); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := artifact.Verify(path, ""); err != nil {
		t.Fatalf("empty expectation should verify: %v", err)
	}

	if err := os.WriteFile(path, []byte("changed"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := artifact.Verify(path, sum); !errors.Is(err, artifact.ErrHashMismatch) {
		t.Fatalf("Verify error = %v, want ErrHashMismatch", err)
	}
	if err := artifact.Verify(path, "not-a-multihash"); err == nil {
		t.Fatal("expected malformed multihash to fail")
	}
}

func TestArchiveKey(t *testing.T) {
	dt := time.Date(2024, 2, 1, 6, 30, 0, 0, time.UTC)
	tests := []struct {
		product, area, digest, ext string
		want                       string
	}{
		{"ntf", "eu", "", ".nc", "ntf/2024/032/ntf_20240201T063000_eu.nc"},
		{"ntf", "", "", "zip", "ntf/2024/032/ntf_20240201T063000.zip"},
		{"ntf", "eu", "QmYwAPJzv5CZsnAzt8auVZRn1pfejpvSs", ".nc", "ntf/2024/032/ntf_20240201T063000_eu_ZRn1pfejpvSs.nc"},
		{"sea surface", "", "", "", "sea_surface/2024/032/sea_surface_20240201T063000"},
		{"", "", "", "", "unknown/2024/032/unknown_20240201T063000"},
	}
	for _, tt := range tests {
		if got := artifact.ArchiveKey(tt.product, dt, tt.area, tt.digest, tt.ext); got != tt.want {
			t.Errorf("ArchiveKey(%q, %q, %q, %q) = %q, want %q", tt.product, tt.area, tt.digest, tt.ext, got, tt.want)
		}
	}
}

func TestArchiveKeyDiffersByContent(t *testing.T) {
	dt := time.Date(2024, 2, 1, 6, 30, 0, 0, time.UTC)
	dir := t.TempDir()
	first := filepath.Join(dir, "first.nc")
	second := filepath.Join(dir, "second.nc")
	if err := os.WriteFile(first, []byte("first run"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(second, []byte("second run"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	firstSum, err := artifact.Sum(first)
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	secondSum, err := artifact.Sum(second)
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	a := artifact.ArchiveKey("ntf", dt, "eu", firstSum, ".nc")
	b := artifact.ArchiveKey("ntf", dt, "eu", secondSum, ".nc")
	if a == b {
		t.Fatalf("different content shares key %q", a)
	}
	if again := artifact.ArchiveKey("ntf", dt, "eu", firstSum, ".nc"); again != a {
		t.Fatalf("same content gave keys %q and %q", a, again)
	}
}

func TestLocalStoreDelete(t *testing.T) {
	store, err := artifact.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	src := filepath.Join(t.TempDir(), "out.nc")
	if err := os.WriteFile(src, []byte("bytes"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	location, err := store.Put(context.Background(), src, "ntf/2024/001/ntf_20240101T000000.nc")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Delete(context.Background(), location); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(location); !os.IsNotExist(err) {
		t.Fatalf("artifact still present: %v", err)
	}
	if err := store.Delete(context.Background(), location); err != nil {
		t.Fatalf("Delete of missing artifact: %v", err)
	}
	if err := store.Delete(context.Background(), filepath.Join(filepath.Dir(store.Root()), "elsewhere")); err == nil {
		t.Fatal("expected delete outside the archive root to fail")
	}
}

func TestExtIgnoresTempSuffixes(t *testing.T) {
	if got := artifact.Ext("/staging/tmp_unzip_20240101T000000_out.nc"); got != ".nc" {
		t.Fatalf("Ext = %q, want .nc", got)
	}
	if got := artifact.Ext("/staging/tmp_unzip_20240101T000000_out"); got != "" {
		t.Fatalf("Ext = %q, want empty", got)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	local, err := artifact.New(config.Artifacts{Backend: config.ArtifactBackendLocal, Root: t.TempDir()})
	if err != nil {
		t.Fatalf("New local: %v", err)
	}
	if _, ok := local.(*artifact.LocalStore); !ok {
		t.Fatalf("expected LocalStore, got %T", local)
	}

	remote, err := artifact.New(config.Artifacts{
		Backend:   config.ArtifactBackendMinIO,
		Endpoint:  "http://127.0.0.1:9000",
		Bucket:    "products",
		AccessKey: "ak",
		SecretKey: "sk",
	})
	if err != nil {
		t.Fatalf("New minio: %v", err)
	}
	if _, ok := remote.(*artifact.ObjectStore); !ok {
		t.Fatalf("expected ObjectStore, got %T", remote)
	}

	if _, err := artifact.New(config.Artifacts{Backend: "tape"}); err == nil {
		t.Fatal("expected unsupported backend error")
	}
}
