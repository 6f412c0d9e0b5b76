package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/zalando/go-keyring"
)

const (
	keyringService = "weibocrawl"
	keyringPrefix  = "weibo_"
	// go-keyring cannot enumerate entries, so the stored names are kept
	// as a JSON list under this key
	keyringIndex = "index"
)

// KeyringStore keeps each credential as one JSON secret in the system
// keychain
type KeyringStore struct{}

// NewKeyringStore fails when the keychain refuses a test write
func NewKeyringStore() (*KeyringStore, error) {
	const checkKey = "availability"
	if err := keyring.Set(keyringService, checkKey, "ok"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, checkKey)
	return &KeyringStore{}, nil
}

func (k *KeyringStore) Name() string { return "keychain" }

func (k *KeyringStore) Get(name string) (*Credential, error) {
	data, err := keyring.Get(keyringService, keyringPrefix+name)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrCredentialsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keychain: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal([]byte(data), &cred); err != nil {
		return nil, fmt.Errorf("failed to decode keychain entry %s: %w", name, err)
	}
	return &cred, nil
}

func (k *KeyringStore) Put(cred *Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to encode credential: %w", err)
	}
	if err := keyring.Set(keyringService, keyringPrefix+cred.Name, string(data)); err != nil {
		return fmt.Errorf("failed to write keychain: %w", err)
	}

	names := k.names()
	if lo.Contains(names, cred.Name) {
		return nil
	}
	return k.setNames(append(names, cred.Name))
}

// All skips index entries whose secret has disappeared
func (k *KeyringStore) All() ([]*Credential, error) {
	return lo.FilterMap(k.names(), func(name string, _ int) (*Credential, bool) {
		cred, err := k.Get(name)
		return cred, err == nil
	}), nil
}

func (k *KeyringStore) Remove(name string) error {
	err := keyring.Delete(keyringService, keyringPrefix+name)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrCredentialsNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete from keychain: %w", err)
	}
	return k.setNames(lo.Without(k.names(), name))
}

func (k *KeyringStore) names() []string {
	data, err := keyring.Get(keyringService, keyringIndex)
	if err != nil {
		return nil
	}
	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil
	}
	return names
}

func (k *KeyringStore) setNames(names []string) error {
	data, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("failed to encode keychain index: %w", err)
	}
	if err := keyring.Set(keyringService, keyringIndex, string(data)); err != nil {
		return fmt.Errorf("failed to update keychain index: %w", err)
	}
	return nil
}
