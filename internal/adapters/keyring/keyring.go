// Package keyring stores OAuth credentials in the operating system keyring.
package keyring

import (
	"context"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
	"github.com/phishguard/phishguard/internal/core"
)

const serviceName = "phishguard"

// CredentialStore implements core.CredentialStore on a keyring
type CredentialStore struct {
	ring keyring.Keyring
}

// Open opens the system keyring, falling back to an encrypted file in fileDir
func Open(fileDir, filePassword string) (*CredentialStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(filePassword),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return New(ring), nil
}

// New wraps an already opened keyring
func New(ring keyring.Keyring) *CredentialStore {
	return &CredentialStore{ring: ring}
}

// GetCredential implements core.CredentialStore
func (s *CredentialStore) GetCredential(ctx context.Context, principalID string) (*core.OAuthCredential, error) {
	item, err := s.ring.Get(itemKey(principalID))
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, core.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to get credential for %s: %w", principalID, err)
	}
	return core.DecodeCredential(principalID, item.Data)
}

// PutCredential implements core.CredentialStore
func (s *CredentialStore) PutCredential(ctx context.Context, cred *core.OAuthCredential) error {
	data, err := core.EncodeCredential(cred)
	if err != nil {
		return err
	}
	err = s.ring.Set(keyring.Item{
		Key:         itemKey(cred.PrincipalID),
		Data:        data,
		Label:       "PhishGuard Gmail credential",
		Description: "OAuth credential for " + cred.PrincipalID,
	})
	if err != nil {
		return fmt.Errorf("failed to set credential for %s: %w", cred.PrincipalID, err)
	}
	return nil
}

func itemKey(principalID string) string {
	return "gmail:" + principalID
}
