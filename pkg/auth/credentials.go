package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"weibocrawl/pkg/config"
)

// SessionCookie is the cookie that carries a logged-in Weibo session
const SessionCookie = "SUB"

// Credential is a named browser session: the Cookie header copied from a
// logged-in browser plus the user agent it was captured with
type Credential struct {
	Name         string    `json:"name"`
	Cookies      string    `json:"cookies"`
	UserAgent    string    `json:"user_agent,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// CookieMap parses Cookies into name/value pairs
func (c *Credential) CookieMap() map[string]string {
	return config.ParseCookies(c.Cookies)
}

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._@-]{0,63}$`)

// ValidateName rejects names that are not usable as a credential name. The
// name "env" is reserved for the environment credential.
func ValidateName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("%w: name %q must start with a letter or digit and use only letters, digits, '.', '_', '@' or '-'",
			ErrInvalidCredentials, name)
	}
	if name == EnvCredentialName {
		return fmt.Errorf("%w: name %q is reserved", ErrInvalidCredentials, name)
	}
	return nil
}

// Normalize validates c and returns a cleaned copy with name and user agent
// trimmed and the cookie header re-rendered in name order
func (c *Credential) Normalize() (*Credential, error) {
	if c == nil {
		return nil, ErrInvalidCredentials
	}

	name := strings.TrimSpace(c.Name)
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	cookies := c.CookieMap()
	if len(cookies) == 0 {
		return nil, fmt.Errorf("%w: cookie header has no name=value pairs", ErrInvalidCredentials)
	}
	if cookies[SessionCookie] == "" {
		return nil, fmt.Errorf("%w: cookie header has no %s cookie", ErrInvalidCredentials, SessionCookie)
	}

	return &Credential{
		Name:         name,
		Cookies:      formatCookies(cookies, func(v string) string { return v }),
		UserAgent:    strings.TrimSpace(c.UserAgent),
		LastModified: c.LastModified,
	}, nil
}

// Masked returns a copy of c with every cookie value masked
func (c *Credential) Masked() *Credential {
	if c == nil {
		return nil
	}
	masked := *c
	masked.Cookies = formatCookies(c.CookieMap(), mask)
	return &masked
}

func formatCookies(cookies map[string]string, value func(string) string) string {
	names := lo.Keys(cookies)
	sort.Strings(names)
	return strings.Join(lo.Map(names, func(name string, _ int) string {
		return name + "=" + value(cookies[name])
	}), "; ")
}

// mask keeps the first and last 4 characters of values longer than 8
func mask(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Backend is one place credentials can live
type Backend interface {
	// Name identifies the backend in error messages
	Name() string
	Get(name string) (*Credential, error)
	// Put replaces any credential with the same name
	Put(cred *Credential) error
	All() ([]*Credential, error)
	Remove(name string) error
}

// Manager looks credentials up across backends in priority order. Writes go
// to the first backend that accepts them.
type Manager struct {
	backends []Backend
}

// NewManager uses the system keychain when it works, then an encrypted
// file in the user config directory, then the environment
func NewManager() (*Manager, error) {
	dir, err := configDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	passphrase, err := filePassphrase(dir)
	if err != nil {
		return nil, err
	}
	file, err := NewFileStore(filepath.Join(dir, "credentials.enc"), passphrase)
	if err != nil {
		return nil, err
	}

	var backends []Backend
	if kr, err := NewKeyringStore(); err == nil {
		backends = append(backends, kr)
	}
	backends = append(backends, file, NewEnvironmentStore())

	return NewManagerWith(backends...), nil
}

// NewManagerWith creates a Manager over the given backends
func NewManagerWith(backends ...Backend) *Manager {
	return &Manager{backends: backends}
}

// Store normalizes cred, stamps it and writes it to the first backend that
// takes it. On success cred holds the stored form.
func (m *Manager) Store(cred *Credential) error {
	clean, err := cred.Normalize()
	if err != nil {
		return err
	}
	clean.LastModified = time.Now()

	var errs []error
	for _, b := range m.backends {
		err := b.Put(clean)
		if err == nil {
			*cred = *clean
			return nil
		}
		if !errors.Is(err, ErrReadOnly) {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
		}
	}

	if len(errs) == 0 {
		return errors.New("no writable credential store")
	}
	return fmt.Errorf("failed to store credentials: %w", errors.Join(errs...))
}

// Retrieve returns the named credential from the first backend holding it
func (m *Manager) Retrieve(name string) (*Credential, error) {
	for _, b := range m.backends {
		if cred, err := b.Get(name); err == nil {
			return cred, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCredentialsNotFound, name)
}

// RetrieveDefault returns the environment credential when set, otherwise
// the stored credential whose name sorts first
func (m *Manager) RetrieveDefault() (*Credential, error) {
	if cred, err := m.Retrieve(EnvCredentialName); err == nil {
		return cred, nil
	}

	creds, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(creds) == 0 {
		return nil, ErrCredentialsNotFound
	}
	return creds[0], nil
}

// List returns one credential per name, sorted by name. When a name is in
// several backends the most recently modified copy wins. Backend errors
// are reported only when nothing could be listed.
func (m *Manager) List() ([]*Credential, error) {
	var all []*Credential
	var errs []error
	for _, b := range m.backends {
		creds, err := b.All()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
			continue
		}
		all = append(all, creds...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Name != all[j].Name {
			return all[i].Name < all[j].Name
		}
		return all[i].LastModified.After(all[j].LastModified)
	})
	all = lo.UniqBy(all, func(c *Credential) string { return c.Name })

	if len(all) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return all, nil
}

// Delete removes the named credential from every writable backend
func (m *Manager) Delete(name string) error {
	removed := false
	var errs []error
	for _, b := range m.backends {
		switch err := b.Remove(name); {
		case err == nil:
			removed = true
		case errors.Is(err, ErrCredentialsNotFound), errors.Is(err, ErrReadOnly):
		default:
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to delete credentials: %w", errors.Join(errs...))
	}
	if !removed {
		return fmt.Errorf("%w: %s", ErrCredentialsNotFound, name)
	}
	return nil
}

// configDir is weibocrawl's directory under the user config directory
func configDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, "weibocrawl")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrReadOnly            = errors.New("credential store is read only")
)
