package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/samirrijal/routecast/internal/core/domain"
)

const artifactPrefix = "routecast:artifact:"

// ArtifactStore implements ports.ArtifactStore. Take uses GETDEL so two
// concurrent downloads cannot both receive the artifact.
type ArtifactStore struct {
	client valkey.Client
	ttl    time.Duration
}

// NewArtifactStore creates a store whose entries expire after ttl.
func NewArtifactStore(client valkey.Client, ttl time.Duration) *ArtifactStore {
	return &ArtifactStore{client: client, ttl: ttl}
}

func artifactKey(id string) string { return artifactPrefix + id }

func (s *ArtifactStore) Put(ctx context.Context, a *domain.Artifact) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	b := s.client.B().Set().Key(artifactKey(a.ID)).Value(valkey.BinaryString(data))
	var cmd valkey.Completed
	if s.ttl > 0 {
		cmd = b.Ex(s.ttl).Build()
	} else {
		cmd = b.Build()
	}
	return s.client.Do(ctx, cmd).Error()
}

func (s *ArtifactStore) Take(ctx context.Context, id string) (*domain.Artifact, error) {
	data, err := s.client.Do(ctx, s.client.B().Getdel().Key(artifactKey(id)).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, fmt.Errorf("artifact %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return decodeArtifact(data)
}

func (s *ArtifactStore) Delete(ctx context.Context, id string) error {
	return s.client.Do(ctx, s.client.B().Del().Key(artifactKey(id)).Build()).Error()
}

func decodeArtifact(data []byte) (*domain.Artifact, error) {
	var a domain.Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	return &a, nil
}
