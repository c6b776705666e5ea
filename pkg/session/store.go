// Package session is the client-side counterpart of the auth API: it holds
// the active token pair, persists it across restarts, and silently refreshes
// the access token. A Client is an explicit object with its own lifecycle;
// two Clients never share state, so tests and multi-session hosts can run
// them side by side.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/zalando/go-keyring"
)

// The two fixed names the persisted pair lives under, regardless of the
// backing store.
const (
	accessTokenKey  = "learnhub.access-token"
	refreshTokenKey = "learnhub.refresh-token"
)

// TokenStore is durable custody for the token pair. Load returns empty
// strings, not an error, when nothing is stored.
type TokenStore interface {
	Load() (accessToken, refreshToken string, err error)
	Save(accessToken, refreshToken string) error
	Clear() error
}

// KeyringStore keeps the pair in the OS keyring under the given service
// name.
type KeyringStore struct {
	Service string
}

func (s KeyringStore) Load() (string, string, error) {
	access, err := s.get(accessTokenKey)
	if err != nil {
		return "", "", err
	}
	refresh, err := s.get(refreshTokenKey)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (s KeyringStore) get(key string) (string, error) {
	val, err := keyring.Get(s.Service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("keyring get %s: %w", key, err)
	}
	return val, nil
}

func (s KeyringStore) Save(access, refresh string) error {
	if err := keyring.Set(s.Service, accessTokenKey, access); err != nil {
		return fmt.Errorf("keyring set: %w", err)
	}
	if err := keyring.Set(s.Service, refreshTokenKey, refresh); err != nil {
		return fmt.Errorf("keyring set: %w", err)
	}
	return nil
}

func (s KeyringStore) Clear() error {
	for _, key := range []string{accessTokenKey, refreshTokenKey} {
		if err := keyring.Delete(s.Service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("keyring delete %s: %w", key, err)
		}
	}
	return nil
}

// FileStore keeps the pair in a mode-0600 JSON file, for hosts without a
// keyring.
type FileStore struct {
	Path string
}

func (s FileStore) Load() (string, string, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("read token file: %w", err)
	}

	var stored map[string]string
	if err := json.Unmarshal(data, &stored); err != nil {
		return "", "", fmt.Errorf("parse token file: %w", err)
	}
	return stored[accessTokenKey], stored[refreshTokenKey], nil
}

func (s FileStore) Save(access, refresh string) error {
	data, err := json.Marshal(map[string]string{
		accessTokenKey:  access,
		refreshTokenKey: refresh,
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.Path, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

func (s FileStore) Clear() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

// MemoryStore holds the pair for the lifetime of the process. The zero
// value is ready to use.
type MemoryStore struct {
	mu      sync.Mutex
	access  string
	refresh string
}

func (s *MemoryStore) Load() (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access, s.refresh, nil
}

func (s *MemoryStore) Save(access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access, s.refresh = access, refresh
	return nil
}

func (s *MemoryStore) Clear() error {
	return s.Save("", "")
}
