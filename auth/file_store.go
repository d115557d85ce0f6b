package auth

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/gaborage/courier/logger"
)

const (
	fileStoreMode = 0o600

	// argon2id parameters for DeriveKey
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// fileStoreAAD binds ciphertexts to their purpose.
var fileStoreAAD = []byte("courier/token/v1")

// FileStore persists the token in a file encrypted with XChaCha20-Poly1305.
// The file layout is nonce || ciphertext. Writes go through a temporary
// file and a rename so a crash never leaves a torn token behind.
type FileStore struct {
	path string
	aead cipher.AEAD
	log  logger.Logger

	mu    sync.RWMutex
	token string
}

var _ TokenStore = (*FileStore)(nil)

// DeriveKey stretches a passphrase into a FileStore key with argon2id.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}

// NewFileStore opens the store at path, decrypting an existing token if the
// file is present. A file that cannot be decrypted with key is an error.
func NewFileStore(path string, key []byte, log logger.Logger) (*FileStore, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKey
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("auth: init cipher: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}

	s := &FileStore{path: path, aead: aead, log: log}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("auth: read token file: %w", err)
	}

	token, err := s.open(data)
	if err != nil {
		return err
	}
	s.token = token
	return nil
}

func (s *FileStore) open(data []byte) (string, error) {
	ns := s.aead.NonceSize()
	if len(data) < ns+s.aead.Overhead() {
		return "", fmt.Errorf("auth: token file %s is truncated", s.path)
	}
	plain, err := s.aead.Open(nil, data[:ns], data[ns:], fileStoreAAD)
	if err != nil {
		return "", fmt.Errorf("auth: decrypt token file %s: %w", s.path, err)
	}
	return string(plain), nil
}

func (s *FileStore) seal(token string) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(token)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("auth: generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, []byte(token), fileStoreAAD), nil
}

// Read returns the token and whether one is present.
func (s *FileStore) Read() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// Write replaces the token. Persistence failures are logged; the in-memory
// value is still updated so the running process keeps working.
func (s *FileStore) Write(token string) {
	if err := s.Save(token); err != nil {
		s.log.Error().Err(err).Str("path", s.path).Msg("Failed to persist token")
	}
}

// Save is Write with the persistence error reported to the caller.
func (s *FileStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token

	if token == "" {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("auth: remove token file: %w", err)
		}
		return nil
	}

	data, err := s.seal(token)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path, data)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("auth: create token dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("auth: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("auth: write temp file: %w", err)
	}
	if err := tmp.Chmod(fileStoreMode); err != nil {
		tmp.Close()
		return fmt.Errorf("auth: chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("auth: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("auth: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("auth: replace token file: %w", err)
	}
	return nil
}
