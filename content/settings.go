package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/eringen/clower/storage"
)

const (
	settingsKey = "settings"

	// DefaultAdminUsername and DefaultAdminPassword seed the first-run
	// account. The password must be changed after the first login.
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "admin"

	deployPasswordSecret = "deploy-password"
)

// PasswordHasher turns a plaintext password into a storable hash.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// SettingsStore reads and merges the single settings document.
type SettingsStore struct {
	mu      sync.Mutex
	b       storage.Backend
	hasher  PasswordHasher
	secrets SecretStore
}

// NewSettingsStore returns a SettingsStore over b. When secrets is nil the
// deployment password is kept in a separate document of the same backend.
func NewSettingsStore(b storage.Backend, hasher PasswordHasher, secrets SecretStore) *SettingsStore {
	if secrets == nil {
		secrets = NewBackendSecrets(b)
	}
	return &SettingsStore{b: b, hasher: hasher, secrets: secrets}
}

// Get returns the settings with the deployment password filled in from the
// secret store. On first run a default admin account is created.
func (s *SettingsStore) Get(ctx context.Context) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *SettingsStore) load(ctx context.Context) (Settings, error) {
	body, err := s.b.Get(ctx, configCollection, settingsKey)
	if errors.Is(err, storage.ErrNotFound) {
		st, err := s.createDefault(ctx)
		if err != nil {
			return Settings{}, err
		}
		if st.Deployment.Password, err = s.secrets.LoadSecret(ctx, deployPasswordSecret); err != nil {
			return Settings{}, fmt.Errorf("load deployment password: %w", err)
		}
		return st, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("get settings: %w", err)
	}

	var st Settings
	if err := json.Unmarshal(body, &st); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}

	dirty := false
	if st.Admin.Username == "" {
		st.Admin.Username = DefaultAdminUsername
		dirty = true
	}
	if st.Admin.PasswordHash == "" {
		hash, err := s.hasher.Hash(DefaultAdminPassword)
		if err != nil {
			return Settings{}, fmt.Errorf("hash default password: %w", err)
		}
		st.Admin.PasswordHash = hash
		dirty = true
	}

	secret, err := s.secrets.LoadSecret(ctx, deployPasswordSecret)
	if err != nil {
		return Settings{}, fmt.Errorf("load deployment password: %w", err)
	}
	// Older settings files carried the deployment password inline; move it
	// into the secret store the first time such a file is read.
	if legacy := legacyDeployPassword(body); legacy != "" {
		if secret == "" {
			err := s.secrets.SaveSecret(ctx, deployPasswordSecret, legacy)
			var refused *ValidationError
			switch {
			case errors.As(err, &refused):
				// A read-only store keeps its own value; the inline copy is dropped.
			case err != nil:
				return Settings{}, fmt.Errorf("save deployment password: %w", err)
			default:
				secret = legacy
			}
		}
		dirty = true
	}
	st.Deployment.Password = secret

	if dirty {
		if err := s.write(ctx, st); err != nil {
			return Settings{}, err
		}
	}
	if st.Deployment.Port == 0 {
		st.Deployment.Port = DefaultSSHPort
	}
	return st, nil
}

func (s *SettingsStore) createDefault(ctx context.Context) (Settings, error) {
	hash, err := s.hasher.Hash(DefaultAdminPassword)
	if err != nil {
		return Settings{}, fmt.Errorf("hash default password: %w", err)
	}
	st := Settings{
		Admin:      AdminAccount{Username: DefaultAdminUsername, PasswordHash: hash},
		Deployment: Deployment{Port: DefaultSSHPort},
	}
	if err := s.write(ctx, st); err != nil {
		return Settings{}, err
	}
	return st, nil
}

// Update merges u into the stored settings and returns the result. Fields
// absent from u keep their stored value; a new admin password replaces
// only the hash.
func (s *SettingsStore) Update(ctx context.Context, u SettingsUpdate) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		return Settings{}, err
	}

	if a := u.Admin; a != nil {
		if name := strings.TrimSpace(a.Username); name != "" {
			st.Admin.Username = name
		}
		if a.Password != "" {
			hash, err := s.hasher.Hash(a.Password)
			if err != nil {
				return Settings{}, fmt.Errorf("hash password: %w", err)
			}
			st.Admin.PasswordHash = hash
		}
	}

	if d := u.Deployment; d != nil {
		if d.Host != nil {
			st.Deployment.Host = strings.TrimSpace(*d.Host)
		}
		if d.Port != nil {
			if *d.Port < 0 || *d.Port > 65535 {
				return Settings{}, invalid("deployment.port", "must be between 0 and 65535")
			}
			st.Deployment.Port = *d.Port
		}
		if d.Username != nil {
			st.Deployment.Username = *d.Username
		}
		if d.RemotePath != nil {
			st.Deployment.RemotePath = *d.RemotePath
		}
		if d.ClearPassword {
			if d.Password != nil && *d.Password != "" {
				return Settings{}, invalid("deployment.password", "cannot be set and cleared at once")
			}
			if st.Deployment.Password != "" {
				if err := s.secrets.SaveSecret(ctx, deployPasswordSecret, ""); err != nil {
					return Settings{}, fmt.Errorf("clear deployment password: %w", err)
				}
				st.Deployment.Password = ""
			}
		}
		if d.Password != nil && *d.Password != "" && *d.Password != st.Deployment.Password {
			if err := s.secrets.SaveSecret(ctx, deployPasswordSecret, *d.Password); err != nil {
				return Settings{}, fmt.Errorf("save deployment password: %w", err)
			}
			st.Deployment.Password = *d.Password
		}
	}

	if u.AutoDeploy != nil {
		st.AutoDeploy = *u.AutoDeploy
	}

	if err := s.write(ctx, st); err != nil {
		return Settings{}, err
	}
	if st.Deployment.Port == 0 {
		st.Deployment.Port = DefaultSSHPort
	}
	return st, nil
}

func (s *SettingsStore) write(ctx context.Context, st Settings) error {
	body, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if err := s.b.Put(ctx, configCollection, settingsKey, body); err != nil {
		return fmt.Errorf("put settings: %w", err)
	}
	return nil
}

func legacyDeployPassword(body []byte) string {
	var legacy struct {
		Deployment struct {
			Password string `json:"password"`
		} `json:"deployment"`
	}
	if err := json.Unmarshal(body, &legacy); err != nil {
		return ""
	}
	return legacy.Deployment.Password
}
