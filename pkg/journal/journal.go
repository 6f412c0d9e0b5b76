package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"weibocrawl/pkg/logger"
)

// FileName is the journal file kept next to the output tables
const FileName = "journal.json"

const currentVersion = 1

// Profile outcomes
const (
	ProfileSaved   = "saved"
	ProfileSkipped = "skipped"
	ProfileFailed  = "failed"
)

// Journal records what the last run did for every account
type Journal struct {
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
	Completed  bool                `json:"completed"`
	Accounts   map[string]*Account `json:"accounts"`
	Order      []string            `json:"order"`
	UpdatedAt  time.Time           `json:"updated_at"`
	Version    int                 `json:"version"`
}

// Account is the journal entry of one account
type Account struct {
	Profile       string      `json:"profile,omitempty"`
	ProfileStatus int         `json:"profile_status,omitempty"`
	ProfileError  string      `json:"profile_error,omitempty"`
	Posts         *PostsEntry `json:"posts,omitempty"`
}

// PostsEntry summarizes the pagination of one account
type PostsEntry struct {
	Pages    int    `json:"pages"`
	Saved    int    `json:"saved"`
	Skipped  int    `json:"skipped"`
	Expanded int    `json:"expanded"`
	Stop     string `json:"stop"`
	Status   int    `json:"status,omitempty"`
	Error    string `json:"error,omitempty"`
}

// AccountIDs returns the journal's accounts in crawl order, followed by any
// account missing from Order sorted by ID
func (j *Journal) AccountIDs() []string {
	ids := make([]string, 0, len(j.Accounts))
	seen := make(map[string]bool, len(j.Order))
	for _, id := range j.Order {
		if _, ok := j.Accounts[id]; ok && !seen[id] {
			ids = append(ids, id)
			seen[id] = true
		}
	}

	var rest []string
	for id := range j.Accounts {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(ids, rest...)
}

// Manager owns the journal of one output directory
type Manager struct {
	mu      sync.Mutex
	path    string
	current *Journal
	logger  logger.Logger
}

// NewManager creates a journal manager writing to <baseDir>/journal.json
func NewManager(baseDir string, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{
		path:   filepath.Join(baseDir, FileName),
		logger: log,
	}
}

// Path returns the journal file location
func (m *Manager) Path() string {
	return m.path
}

// Exists checks if a journal file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// Load reads the journal from disk, returning nil when none exists
func (m *Manager) Load() (*Journal, error) {
	file, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open journal file: %w", err)
	}
	defer file.Close()

	var j Journal
	if err := json.NewDecoder(file).Decode(&j); err != nil {
		return nil, fmt.Errorf("failed to decode journal: %w", err)
	}
	if j.Accounts == nil {
		j.Accounts = make(map[string]*Account)
	}
	return &j, nil
}

// Begin starts a fresh journal for a run over accounts, replacing the
// previous one
func (m *Manager) Begin(accounts []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	j := &Journal{
		StartedAt: now,
		Accounts:  make(map[string]*Account, len(accounts)),
		Order:     append([]string(nil), accounts...),
		Version:   currentVersion,
	}
	for _, id := range accounts {
		j.Accounts[id] = &Account{}
	}
	m.current = j

	if err := m.save(j); err != nil {
		return err
	}

	m.logger.DebugWithFields("Journal started", map[string]interface{}{
		"path":     m.path,
		"accounts": len(accounts),
	})
	return nil
}

// RecordProfile stores the profile phase outcome of an account
func (m *Manager) RecordProfile(accountID, outcome string, status int, cause error) error {
	return m.update(accountID, func(a *Account) {
		a.Profile = outcome
		a.ProfileStatus = status
		a.ProfileError = ""
		if cause != nil {
			a.ProfileError = cause.Error()
		}
	})
}

// RecordPosts stores the pagination summary of an account
func (m *Manager) RecordPosts(accountID string, entry PostsEntry) error {
	return m.update(accountID, func(a *Account) {
		e := entry
		a.Posts = &e
	})
}

// Finish marks the run as ended
func (m *Manager) Finish(completed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return fmt.Errorf("journal not started")
	}
	now := time.Now()
	m.current.FinishedAt = &now
	m.current.Completed = completed
	return m.save(m.current)
}

// Delete removes the journal file
func (m *Manager) Delete() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete journal: %w", err)
	}
	return nil
}

func (m *Manager) update(accountID string, fn func(*Account)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return fmt.Errorf("journal not started")
	}
	a, ok := m.current.Accounts[accountID]
	if !ok {
		a = &Account{}
		m.current.Accounts[accountID] = a
		m.current.Order = append(m.current.Order, accountID)
	}
	fn(a)
	return m.save(m.current)
}

// save writes j to disk atomically
func (m *Manager) save(j *Journal) error {
	j.UpdatedAt = time.Now()

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("failed to create journal directory: %w", err)
	}

	tempPath := m.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary journal file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(j); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode journal: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync journal file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close journal file: %w", err)
	}

	if err := os.Rename(tempPath, m.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace journal file: %w", err)
	}
	return nil
}
