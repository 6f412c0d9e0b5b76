package auth

import (
	"os"
)

// Environment variables read by EnvironmentStore
const (
	EnvCookies   = "WEIBOCRAWL_COOKIES"
	EnvUserAgent = "WEIBOCRAWL_USER_AGENT"
)

// EnvCredentialName is the name the environment credential answers to
const EnvCredentialName = "env"

// EnvironmentStore exposes WEIBOCRAWL_COOKIES as the read-only credential
// "env"
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Name() string { return "environment" }

func (e *EnvironmentStore) Get(name string) (*Credential, error) {
	cookies := os.Getenv(EnvCookies)
	if name != EnvCredentialName || cookies == "" {
		return nil, ErrCredentialsNotFound
	}
	return &Credential{
		Name:      EnvCredentialName,
		Cookies:   cookies,
		UserAgent: os.Getenv(EnvUserAgent),
	}, nil
}

func (e *EnvironmentStore) Put(*Credential) error { return ErrReadOnly }

func (e *EnvironmentStore) All() ([]*Credential, error) {
	cred, err := e.Get(EnvCredentialName)
	if err != nil {
		return nil, nil
	}
	return []*Credential{cred}, nil
}

func (e *EnvironmentStore) Remove(string) error { return ErrReadOnly }
