package storage

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	crawlerrors "weibocrawl/pkg/errors"
	"weibocrawl/pkg/models"
)

const bom = "\ufeff"

// Table describes one CSV file keyed by its first column
type Table struct {
	Name   string
	Path   string
	Header []string
}

// ProfileTable is the single table holding every account's profile
func ProfileTable(baseDir string) Table {
	return Table{
		Name:   "profiles",
		Path:   filepath.Join(baseDir, "weibo_user_info.csv"),
		Header: models.ProfileHeader,
	}
}

// PostsDir is the directory holding the per-account post tables
func PostsDir(baseDir string) string {
	return filepath.Join(baseDir, "posts")
}

// PostTable is the post table of one account
func PostTable(baseDir, accountID string) Table {
	return Table{
		Name:   "posts:" + accountID,
		Path:   filepath.Join(PostsDir(baseDir), accountID+".csv"),
		Header: models.PostHeader,
	}
}

// Manager reads and appends CSV tables. Keys of a table are loaded on the
// first lookup and kept in memory; appends made through the Manager keep
// that set current. It assumes it is the only writer of its tables.
type Manager struct {
	mu   sync.RWMutex
	keys map[string]map[string]struct{}
}

// NewManager creates a new storage manager
func NewManager() *Manager {
	return &Manager{keys: make(map[string]map[string]struct{})}
}

// EnsureDir creates dir and its parents
func (m *Manager) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return crawlerrors.StorageIO("create directory", fmt.Errorf("%s: %w", dir, err))
	}
	return nil
}

// Exists reports whether a row with key in its first column is already in t.
// A missing file holds no keys.
func (m *Manager) Exists(t Table, key string) (bool, error) {
	keys, err := m.index(t)
	if err != nil {
		return false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := keys[key]
	return ok, nil
}

// Count returns the number of distinct keys stored in t
func (m *Manager) Count(t Table) (int, error) {
	keys, err := m.index(t)
	if err != nil {
		return 0, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(keys), nil
}

// Append writes row to the end of t. A new file starts with a byte order
// mark and the header row.
func (m *Manager) Append(t Table, row []string) error {
	if len(row) != len(t.Header) {
		return crawlerrors.StorageIO("append row",
			fmt.Errorf("%s: row has %d columns, want %d", t.Path, len(row), len(t.Header)))
	}

	if err := os.MkdirAll(filepath.Dir(t.Path), 0755); err != nil {
		return crawlerrors.StorageIO("create directory", err)
	}

	f, err := os.OpenFile(t.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return crawlerrors.StorageIO("open table", err)
	}

	if err := writeRow(f, t, row); err != nil {
		f.Close()
		return crawlerrors.StorageIO("append row", fmt.Errorf("%s: %w", t.Path, err))
	}
	if err := f.Close(); err != nil {
		return crawlerrors.StorageIO("close table", fmt.Errorf("%s: %w", t.Path, err))
	}

	m.mu.Lock()
	if keys, ok := m.keys[t.Path]; ok {
		keys[row[0]] = struct{}{}
	}
	m.mu.Unlock()

	return nil
}

func writeRow(f *os.File, t Table, row []string) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if _, err := io.WriteString(f, bom); err != nil {
			return err
		}
		if err := w.Write(t.Header); err != nil {
			return err
		}
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// index returns the key set of t, scanning the file on first use
func (m *Manager) index(t Table) (map[string]struct{}, error) {
	m.mu.RLock()
	keys, ok := m.keys[t.Path]
	m.mu.RUnlock()
	if ok {
		return keys, nil
	}

	keys, err := scanKeys(t)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.keys[t.Path]; ok {
		return existing, nil
	}
	m.keys[t.Path] = keys
	return keys, nil
}

// scanKeys collects the first column of every data row of t
func scanKeys(t Table) (map[string]struct{}, error) {
	keys := make(map[string]struct{})

	f, err := os.Open(t.Path)
	if errors.Is(err, os.ErrNotExist) {
		return keys, nil
	}
	if err != nil {
		return nil, crawlerrors.StorageIO("open table", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if head, err := br.Peek(len(bom)); err == nil && string(head) == bom {
		br.Discard(len(bom))
	}

	r := csv.NewReader(br)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, crawlerrors.StorageIO("scan table", fmt.Errorf("%s: %w", t.Path, err))
		}
		if first {
			first = false
			if len(t.Header) > 0 && len(rec) > 0 && rec[0] == t.Header[0] {
				continue
			}
		}
		if len(rec) == 0 || rec[0] == "" {
			continue
		}
		keys[rec[0]] = struct{}{}
	}

	return keys, nil
}
