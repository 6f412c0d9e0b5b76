package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/crypto/pbkdf2"
)

// EnvPassphrase overrides the generated file passphrase
const EnvPassphrase = "WEIBOCRAWL_PASSPHRASE"

const (
	fileVersion = 1
	kdfName     = "pbkdf2-sha256"
	kdfRounds   = 210000
	saltLen     = 16
	keyLen      = 32
)

// sealedFile is the on-disk form. Sealed is the AES-GCM nonce followed by
// the ciphertext of the JSON vault; the header is bound as additional data.
type sealedFile struct {
	Version int    `json:"version"`
	KDF     string `json:"kdf"`
	Rounds  int    `json:"rounds"`
	Salt    []byte `json:"salt"`
	Sealed  []byte `json:"sealed"`
}

func (s sealedFile) additionalData() []byte {
	return []byte(fmt.Sprintf("weibocrawl-credentials/v%d/%s/%d", s.Version, s.KDF, s.Rounds))
}

// vault is the decrypted content, keyed by credential name
type vault map[string]Credential

// FileStore keeps credentials in one passphrase-encrypted file. Every write
// draws a fresh salt and nonce and replaces the file atomically.
type FileStore struct {
	path       string
	passphrase []byte
	mu         sync.Mutex
}

// NewFileStore opens the store at path; the file is created on first Put
func NewFileStore(path, passphrase string) (*FileStore, error) {
	if passphrase == "" {
		return nil, errors.New("credential file passphrase is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}
	return &FileStore{path: path, passphrase: []byte(passphrase)}, nil
}

func (f *FileStore) Name() string { return "file" }

func (f *FileStore) Get(name string) (*Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, err := f.read()
	if err != nil {
		return nil, err
	}
	cred, ok := v[name]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &cred, nil
}

func (f *FileStore) Put(cred *Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, err := f.read()
	if err != nil {
		return err
	}
	v[cred.Name] = *cred
	return f.write(v)
}

func (f *FileStore) All() ([]*Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, err := f.read()
	if err != nil {
		return nil, err
	}
	return lo.MapToSlice(v, func(_ string, c Credential) *Credential { return &c }), nil
}

// Remove deletes name; the file goes away with its last credential
func (f *FileStore) Remove(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := v[name]; !ok {
		return ErrCredentialsNotFound
	}
	delete(v, name)

	if len(v) == 0 {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove credential file: %w", err)
		}
		return nil
	}
	return f.write(v)
}

// read returns an empty vault when the file does not exist yet
func (f *FileStore) read() (vault, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return vault{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}

	var sf sealedFile
	if err := json.Unmarshal(raw, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse credential file: %w", err)
	}
	if sf.Version != fileVersion || sf.KDF != kdfName {
		return nil, fmt.Errorf("unsupported credential file (version %d, kdf %q)", sf.Version, sf.KDF)
	}

	aead, err := f.aead(sf.Salt, sf.Rounds)
	if err != nil {
		return nil, err
	}
	if len(sf.Sealed) < aead.NonceSize() {
		return nil, errors.New("credential file is truncated")
	}
	nonce, ciphertext := sf.Sealed[:aead.NonceSize()], sf.Sealed[aead.NonceSize():]

	plain, err := aead.Open(nil, nonce, ciphertext, sf.additionalData())
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credential file, wrong passphrase? %w", err)
	}

	v := vault{}
	if err := json.Unmarshal(plain, &v); err != nil {
		return nil, fmt.Errorf("failed to parse decrypted credentials: %w", err)
	}
	return v, nil
}

func (f *FileStore) write(v vault) error {
	plain, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	sf := sealedFile{Version: fileVersion, KDF: kdfName, Rounds: kdfRounds, Salt: make([]byte, saltLen)}
	if _, err := rand.Read(sf.Salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	aead, err := f.aead(sf.Salt, sf.Rounds)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	sf.Sealed = aead.Seal(nonce, nonce, plain, sf.additionalData())

	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credential file: %w", err)
	}

	// CreateTemp opens with mode 0600
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("failed to create credential file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace credential file: %w", err)
	}
	return nil
}

func (f *FileStore) aead(salt []byte, rounds int) (cipher.AEAD, error) {
	if len(salt) == 0 || rounds <= 0 {
		return nil, errors.New("credential file has no key derivation parameters")
	}
	key := pbkdf2.Key(f.passphrase, salt, rounds, keyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// filePassphrase returns WEIBOCRAWL_PASSPHRASE, or the random passphrase kept
// in dir, generating it on first use
func filePassphrase(dir string) (string, error) {
	if p := os.Getenv(EnvPassphrase); p != "" {
		return p, nil
	}

	path := filepath.Join(dir, ".passphrase")
	if data, err := os.ReadFile(path); err == nil {
		if p := strings.TrimSpace(string(data)); p != "" {
			return p, nil
		}
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	p := hex.EncodeToString(secret)
	if err := os.WriteFile(path, []byte(p), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return p, nil
}
