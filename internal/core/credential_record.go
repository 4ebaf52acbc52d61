package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CredentialRecordVersion is the schema version written by EncodeCredential
const CredentialRecordVersion = 1

// credentialRecord is the persisted form of an OAuthCredential.
// Version 0 records are the untyped blobs written before versioning,
// where the access token was stored under "token".
type credentialRecord struct {
	Version      int       `json:"version"`
	AccessToken  string    `json:"access_token,omitempty"`
	LegacyToken  string    `json:"token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	TokenURI     string    `json:"token_uri"`
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// EncodeCredential serialises a credential as a versioned record
func EncodeCredential(cred *OAuthCredential) ([]byte, error) {
	if err := validateCredential(cred); err != nil {
		return nil, err
	}
	rec := credentialRecord{
		Version:      CredentialRecordVersion,
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		TokenType:    cred.TokenType,
		TokenURI:     cred.TokenURI,
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		Scopes:       cred.Scopes,
		Expiry:       cred.Expiry.UTC(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode credential record: %w", err)
	}
	return data, nil
}

// DecodeCredential parses a stored record, upgrading legacy blobs
func DecodeCredential(principalID string, data []byte) (*OAuthCredential, error) {
	var rec credentialRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode credential record: %w", err)
	}

	switch rec.Version {
	case 0:
		if rec.AccessToken == "" {
			rec.AccessToken = rec.LegacyToken
		}
	case CredentialRecordVersion:
	default:
		return nil, fmt.Errorf("unsupported credential record version %d", rec.Version)
	}

	cred := &OAuthCredential{
		PrincipalID:  principalID,
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
		TokenType:    rec.TokenType,
		TokenURI:     rec.TokenURI,
		ClientID:     rec.ClientID,
		ClientSecret: rec.ClientSecret,
		Scopes:       rec.Scopes,
		Expiry:       rec.Expiry,
	}
	if err := validateCredential(cred); err != nil {
		return nil, err
	}
	return cred, nil
}

func validateCredential(cred *OAuthCredential) error {
	if cred == nil {
		return errors.New("credential is nil")
	}
	switch {
	case cred.PrincipalID == "":
		return errors.New("credential has no principal id")
	case cred.AccessToken == "":
		return errors.New("credential has no access token")
	case cred.TokenURI == "":
		return errors.New("credential has no token uri")
	case cred.ClientID == "":
		return errors.New("credential has no client id")
	}
	return nil
}
