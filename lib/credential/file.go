// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bureau-foundation/tasklist/lib/clock"
	"github.com/bureau-foundation/tasklist/lib/codec"
	"github.com/bureau-foundation/tasklist/lib/sealed"
	"github.com/bureau-foundation/tasklist/lib/secret"
)

// recordVersion is bumped when the on-disk record changes shape.
const recordVersion = 1

// record is the CBOR document stored in the credential file.
type record struct {
	Version  int       `cbor:"version"`
	Token    []byte    `cbor:"token"`
	StoredAt time.Time `cbor:"stored_at"`
}

// FileStoreConfig configures a [FileStore].
type FileStoreConfig struct {
	// Path is the credential file. Its parent directory is created
	// with mode 0700 on first write.
	Path string

	// Identity, when non-nil, seals the file: records are encrypted
	// to Identity.PublicKey and decrypted with Identity.PrivateKey.
	// The store borrows the keypair; the caller closes it.
	Identity *sealed.Keypair

	// Clock stamps StoredAt. Defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// FileStore is a [Store] backed by a single file.
type FileStore struct {
	path     string
	identity *sealed.Keypair
	clock    clock.Clock
	logger   *slog.Logger

	mu sync.Mutex
	// cached holds the credential after the first successful read or
	// write. Nil with loaded=true means the file is known to be absent.
	cached *secret.Buffer
	loaded bool
}

// NewFileStore returns a FileStore for cfg.Path. The file is not read
// until the first Get.
func NewFileStore(cfg FileStoreConfig) (*FileStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("credential: file store path is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &FileStore{
		path:     cfg.Path,
		identity: cfg.Identity,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
	}, nil
}

// Path returns the credential file path.
func (s *FileStore) Path() string { return s.path }

// Sealed reports whether records are encrypted.
func (s *FileStore) Sealed() bool { return s.identity != nil }

func (s *FileStore) Get() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		buffer, err := s.readFile()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				s.loaded = true
				return "", fmt.Errorf("%w (%s)", ErrNoCredential, s.path)
			}
			return "", err
		}
		s.cached = buffer
		s.loaded = true
	}
	if s.cached == nil {
		return "", fmt.Errorf("%w (%s)", ErrNoCredential, s.path)
	}
	return s.cached.String(), nil
}

func (s *FileStore) Set(credential string) error {
	if credential == "" {
		return fmt.Errorf("credential: refusing to store an empty credential")
	}

	token := []byte(credential)
	data, err := codec.Marshal(record{
		Version:  recordVersion,
		Token:    token,
		StoredAt: s.clock.Now().UTC(),
	})
	secret.Zero(token)
	if err != nil {
		return fmt.Errorf("credential: encoding record: %w", err)
	}
	if s.identity != nil {
		ciphertext, err := sealed.Encrypt(data, s.identity.PublicKey)
		secret.Zero(data)
		if err != nil {
			return fmt.Errorf("credential: %w", err)
		}
		data = ciphertext
	}

	buffer, err := secret.NewFromString(credential)
	if err != nil {
		return fmt.Errorf("credential: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeAtomic(s.path, data); err != nil {
		buffer.Close()
		return err
	}
	s.replaceCached(buffer)
	s.logger.Debug("credential stored",
		"path", s.path,
		"fingerprint", Fingerprint(credential),
		"sealed", s.identity != nil,
	)
	return nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("credential: removing %s: %w", s.path, err)
	}
	s.replaceCached(nil)
	s.logger.Debug("credential cleared", "path", s.path)
	return nil
}

// Reload discards the in-memory copy so the next Get re-reads the file.
// Call it when the file may have been changed by another process.
func (s *FileStore) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceCached(nil)
	s.loaded = false
	return nil
}

// Close releases the in-memory copy. The file is left in place.
func (s *FileStore) Close() error {
	return s.Reload()
}

// replaceCached must be called with mu held.
func (s *FileStore) replaceCached(buffer *secret.Buffer) {
	if s.cached != nil {
		s.cached.Close()
	}
	s.cached = buffer
	s.loaded = true
}

func (s *FileStore) readFile() (*secret.Buffer, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	defer secret.Zero(data)

	plaintext := data
	if s.identity != nil {
		decrypted, err := sealed.Decrypt(data, s.identity.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("credential: opening %s: %w", s.path, err)
		}
		defer decrypted.Close()
		plaintext = decrypted.Bytes()
	}

	var stored record
	if err := codec.Unmarshal(plaintext, &stored); err != nil {
		return nil, fmt.Errorf("credential: decoding %s: %w", s.path, err)
	}
	if stored.Version != recordVersion {
		secret.Zero(stored.Token)
		return nil, fmt.Errorf("credential: %s has record version %d, expected %d", s.path, stored.Version, recordVersion)
	}
	if len(stored.Token) == 0 {
		return nil, fmt.Errorf("credential: %s holds an empty token", s.path)
	}
	buffer, err := secret.NewFromBytes(stored.Token)
	if err != nil {
		secret.Zero(stored.Token)
		return nil, fmt.Errorf("credential: %w", err)
	}
	return buffer, nil
}

// writeAtomic writes data to path via a temporary file in the same
// directory, fsynced and renamed into place, then fsyncs the directory.
// Readers never observe a partial file. The file mode is 0600.
func writeAtomic(path string, data []byte) error {
	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0700); err != nil {
		return fmt.Errorf("credential: creating %s: %w", directory, err)
	}

	temporaryPath := path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("credential: creating temporary file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("credential: writing temporary file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("credential: syncing temporary file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("credential: closing temporary file: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("credential: renaming into place: %w", err)
	}

	parentDirectory, err := os.Open(directory)
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}
	return nil
}
