package artifact

import (
	"context"
	"fmt"

	"satpipe/internal/config"
)

// Store moves artifact bytes between the archive and local paths.
type Store interface {
	// Fetch copies the artifact at location into localPath.
	Fetch(ctx context.Context, location, localPath string) error
	// Put archives localPath under key and returns the location recorded
	// in the metadata store.
	Put(ctx context.Context, localPath, key string) (string, error)
	// Delete removes the artifact at location. A missing artifact is not
	// an error.
	Delete(ctx context.Context, location string) error
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
	// Describe names the backend for diagnostics.
	Describe() string
}

// New builds the artifact store selected by configuration.
func New(cfg config.Artifacts) (Store, error) {
	switch cfg.Backend {
	case config.ArtifactBackendLocal, "":
		return NewLocalStore(cfg.Root)
	case config.ArtifactBackendMinIO:
		return NewObjectStore(ObjectStoreOptions{
			Endpoint:  cfg.Endpoint,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
		})
	default:
		return nil, fmt.Errorf("artifact backend %q not supported", cfg.Backend)
	}
}
