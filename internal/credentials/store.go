// Package credentials persists user accounts as an append-only text file,
// one "username hash" line per user. The file has no concurrent-access
// guarantee of its own, so every scan and append holds the store mutex.
package credentials

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUsernameTaken = errors.New("username already registered")
	ErrNotRegistered = errors.New("username not registered")
)

// Hasher is the pluggable one-way function used for passwords. The default
// is bcrypt, which carries its own random salt inside the encoded hash.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Compare(hash, plaintext string) bool
}

type bcryptHasher struct{}

func (bcryptHasher) Hash(plaintext string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func (bcryptHasher) Compare(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// Store reads and appends credential records.
type Store struct {
	mu     sync.Mutex
	path   string
	hasher Hasher
}

// NewStore ensures the parent directory exists and returns a store over path.
// The file itself is created lazily on first append.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create credentials directory: %w", err)
		}
	}
	return &Store{path: path, hasher: bcryptHasher{}}, nil
}

// SetHasher swaps the password hash function. Intended for tests.
func (s *Store) SetHasher(h Hasher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasher = h
}

// IsRegistered reports whether username has a record. A missing file means
// nobody is registered yet.
func (s *Store) IsRegistered(username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, found, err := s.lookup(username)
	return found, err
}

// Register hashes the password and appends a record for username.
// Fails with ErrUsernameTaken if the name is already present; the check and
// the append happen under one lock acquisition so two racing registrations
// cannot both succeed.
func (s *Store) Register(username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, found, err := s.lookup(username)
	if err != nil {
		return err
	}
	if found {
		return ErrUsernameTaken
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open credentials file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s %s\n", username, hash); err != nil {
		return fmt.Errorf("append credentials record: %w", err)
	}
	return nil
}

// Verify recomputes the one-way hash of plaintext against the stored record.
func (s *Store) Verify(username, password string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash, found, err := s.lookup(username)
	if err != nil {
		return false, err
	}
	if !found {
		return false, ErrNotRegistered
	}
	return s.hasher.Compare(hash, password), nil
}

// lookup scans the file for username. Caller holds s.mu.
func (s *Store) lookup(username string) (hash string, found bool, err error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("open credentials file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name, rest, ok := strings.Cut(scanner.Text(), " ")
		if !ok {
			continue
		}
		if name == username {
			return rest, true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", false, fmt.Errorf("scan credentials file: %w", err)
	}
	return "", false, nil
}
