package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Secure-store item names holding the device identity.
const (
	itemEndpointName   = "endpoint_name"
	itemServerURI      = "server_uri"
	itemBootstrappedAt = "bootstrapped_at"
)

// Identity is what the device registers as.
type Identity struct {
	EndpointName   string    `json:"endpoint_name"`
	ServerURI      string    `json:"server_uri"`
	BootstrappedAt time.Time `json:"bootstrapped_at"`
}

// Bootstrap loads the device identity, creating it on first boot.
//
// On first boot the endpoint name comes from endpointName or, if empty, is
// generated as "dev-" plus a random suffix. Once stored, the persisted
// identity wins over configuration until a factory reset. The server URI is
// refreshed from configuration on every boot.
func (s *Store) Bootstrap(ctx context.Context, endpointName, serverURI string) (*Identity, error) {
	id := &Identity{}

	name, err := s.GetString(ctx, KindConfig, itemEndpointName)
	switch {
	case err == nil:
		id.EndpointName = name
	case errors.Is(err, ErrNotFound):
		id.EndpointName = endpointName
		if id.EndpointName == "" {
			id.EndpointName = "dev-" + uuid.NewString()[:8]
		}
		if err := s.Put(ctx, KindConfig, itemEndpointName, []byte(id.EndpointName), false); err != nil {
			return nil, fmt.Errorf("storing endpoint name: %w", err)
		}
	default:
		return nil, fmt.Errorf("loading endpoint name: %w", err)
	}

	if serverURI != "" {
		if err := s.Put(ctx, KindConfig, itemServerURI, []byte(serverURI), false); err != nil {
			return nil, fmt.Errorf("storing server uri: %w", err)
		}
	}
	if id.ServerURI, err = s.GetString(ctx, KindConfig, itemServerURI); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("loading server uri: %w", err)
	}

	stamp, err := s.GetString(ctx, KindConfig, itemBootstrappedAt)
	switch {
	case err == nil:
		id.BootstrappedAt, err = time.Parse(time.RFC3339, stamp)
		if err != nil {
			return nil, statusErr("bootstrap", StatusStorageError, fmt.Errorf("parsing bootstrap time: %w", err))
		}
	case errors.Is(err, ErrNotFound):
		id.BootstrappedAt = time.Now().UTC().Truncate(time.Second)
		if err := s.Put(ctx, KindConfig, itemBootstrappedAt, []byte(id.BootstrappedAt.Format(time.RFC3339)), false); err != nil {
			return nil, fmt.Errorf("storing bootstrap time: %w", err)
		}
	default:
		return nil, fmt.Errorf("loading bootstrap time: %w", err)
	}

	return id, nil
}
