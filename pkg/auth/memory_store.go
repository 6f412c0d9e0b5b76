package auth

import (
	"sync"

	"github.com/samber/lo"
)

// MemoryStore keeps credentials for the life of the process. Tests use it in
// place of the keychain; a non-nil PutErr fails every Put.
type MemoryStore struct {
	mu     sync.Mutex
	creds  map[string]Credential
	PutErr error
}

// NewMemoryStore creates an empty in-memory backend
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: make(map[string]Credential)}
}

// NewMemoryManager creates a Manager over a single in-memory backend
func NewMemoryManager() (*Manager, *MemoryStore) {
	store := NewMemoryStore()
	return NewManagerWith(store), store
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Get(name string) (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, ok := m.creds[name]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &cred, nil
}

func (m *MemoryStore) Put(cred *Credential) error {
	if m.PutErr != nil {
		return m.PutErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[cred.Name] = *cred
	return nil
}

func (m *MemoryStore) All() ([]*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lo.MapToSlice(m.creds, func(_ string, c Credential) *Credential { return &c }), nil
}

func (m *MemoryStore) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.creds[name]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.creds, name)
	return nil
}

// Len returns the number of stored credentials
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.creds)
}
