package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/eringen/clower/storage"
)

const secretsCollection = "secrets"

// SecretStore holds credentials that must not live in the settings
// document. A missing secret loads as "".
type SecretStore interface {
	LoadSecret(ctx context.Context, name string) (string, error)
	SaveSecret(ctx context.Context, name, value string) error
}

// BackendSecrets keeps each secret in its own document of the "secrets"
// collection.
type BackendSecrets struct {
	b storage.Backend
}

// NewBackendSecrets returns a SecretStore over b.
func NewBackendSecrets(b storage.Backend) *BackendSecrets {
	return &BackendSecrets{b: b}
}

type secretDoc struct {
	Value string `json:"value"`
}

func (s *BackendSecrets) LoadSecret(ctx context.Context, name string) (string, error) {
	body, err := s.b.Get(ctx, secretsCollection, name)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var doc secretDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("decode secret %s: %w", name, err)
	}
	return doc.Value, nil
}

func (s *BackendSecrets) SaveSecret(ctx context.Context, name, value string) error {
	body, err := json.Marshal(secretDoc{Value: value})
	if err != nil {
		return err
	}
	return s.b.Put(ctx, secretsCollection, name, body)
}

// StaticSecrets serves secrets from a fixed map, typically filled from the
// environment. Saving is refused so operators keep control of the value.
type StaticSecrets map[string]string

// DeployPasswordSecret is the name under which the deployment password is
// stored.
const DeployPasswordSecret = deployPasswordSecret

func (s StaticSecrets) LoadSecret(_ context.Context, name string) (string, error) {
	return s[name], nil
}

func (s StaticSecrets) SaveSecret(_ context.Context, name, _ string) error {
	return invalid(name, "is managed outside the admin panel")
}
