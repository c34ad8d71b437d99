package sdk

import (
	"os"

	"github.com/refbase-dev/refbase-admin/internal/store"
	"github.com/refbase-dev/refbase-admin/pkg/schema"
)

// New initializes the store based on the environment.
// It returns the interface, so the app doesn't care if it's local or remote.
func New(dataDir string) (MasterStore, error) {
	// 1. Check if a remote store is defined in environment variables
	remoteAddr := os.Getenv("REFBASE_ADDR")

	if remoteAddr != "" {
		// Attempt to connect to the network service
		client, err := Connect(remoteAddr)
		if err == nil {
			return client, nil
		}
		// If the connection fails, fall back to local
	}

	// 2. Fallback to embedded mode
	// This uses the same engine the daemon uses, but inside the app process.
	p, err := store.NewPersistence(dataDir)
	if err != nil {
		return nil, err
	}

	snaps, err := p.LoadAll()
	if err != nil {
		return nil, err
	}
	audit, err := p.LoadAudit()
	if err != nil {
		return nil, err
	}

	m := store.NewMemStore(p)
	m.Register(schema.DefaultCatalog()...)
	m.Restore(snaps, audit)
	return m, nil
}
