// Package secrets resolves the opaque secret references carried in
// internal/config (§4.8). A reference beginning with "projects/" names
// a secret in a managed secret-store and is resolved through Resolver;
// any other value is used literally, which keeps local development and
// tests free of any cloud dependency.
package secrets

import (
	"context"
	"fmt"
	"strings"
)

// Resolver turns a secret reference into its value.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// Static resolves every reference to the literal string it was given —
// used in local development and tests, and as the fallback for any
// reference that isn't a managed-secret path.
type Static struct{}

func (Static) Resolve(_ context.Context, ref string) (string, error) { return ref, nil }

// ManagedLookup is the narrow interface a cloud secret-manager client
// must satisfy; kept separate from any SDK type so tests can supply a
// map-backed fake without pulling in cloud credentials.
type ManagedLookup interface {
	AccessSecret(ctx context.Context, name string) (string, error)
}

// Chain resolves "projects/..." references through Managed and
// everything else literally, mirroring the two-tier resolution the
// provider's own API-key/tenant-id fields already need (§4.8).
type Chain struct {
	Managed ManagedLookup
}

func NewChain(managed ManagedLookup) *Chain { return &Chain{Managed: managed} }

func (c *Chain) Resolve(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	if !strings.HasPrefix(ref, "projects/") {
		return ref, nil
	}
	if c.Managed == nil {
		return "", fmt.Errorf("secret %q requires a managed secret-store client but none is configured", ref)
	}
	return c.Managed.AccessSecret(ctx, ref)
}
