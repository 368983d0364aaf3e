package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tasknetics/taskcore/errors"
	"github.com/tasknetics/taskcore/logging"
)

// envelope is the on-disk checkpoint format.
type envelope struct {
	Version  uint64          `json:"version"`
	Checksum string          `json:"checksum"`
	SavedAt  time.Time       `json:"saved_at"`
	Payload  json.RawMessage `json:"payload"`
}

// Store persists named checkpoints under a directory.
// Safe for concurrent use; writes to the same name are serialized.
type Store struct {
	mu     sync.Mutex
	dir    string
	logger *logging.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger used for recovery warnings.
func WithLogger(l *logging.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l.WithComponent("checkpoint")
	}
}

// NewStore creates a checkpoint store rooted at dir, creating it if needed.
func NewStore(dir string, opts ...StoreOption) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}
	s := &Store{dir: dir, logger: logging.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// validName rejects names that would escape the store directory.
func validName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return errors.InvalidInput(fmt.Sprintf("invalid checkpoint name %q", name))
	}
	return nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".checkpoint.json")
}

func checksum(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Save writes payload as the next version of the named checkpoint.
// The previous primary copy becomes the backup before the new one lands.
func (s *Store) Save(name string, payload []byte) (uint64, error) {
	if err := validName(name); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	primary := s.path(name)
	version := uint64(1)

	prev, err := os.ReadFile(primary)
	switch {
	case err == nil:
		var old envelope
		if json.Unmarshal(prev, &old) == nil {
			version = old.Version + 1
		}
		// Keep the old primary as the fallback copy.
		if err := WriteFileAtomic(primary+".bak", prev, 0o644); err != nil {
			return 0, fmt.Errorf("preserve backup: %w", err)
		}
	case os.IsNotExist(err):
		// First save, nothing to back up.
	default:
		return 0, fmt.Errorf("read existing checkpoint: %w", err)
	}

	env := envelope{
		Version:  version,
		Checksum: checksum(payload),
		SavedAt:  time.Now().UTC(),
		Payload:  json.RawMessage(payload),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return 0, fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := WriteFileAtomic(primary, data, 0o644); err != nil {
		return 0, fmt.Errorf("write checkpoint: %w", err)
	}
	return version, nil
}

// Load reads the named checkpoint, verifying its checksum. A corrupt
// primary falls back to the backup copy; if both are unusable, Load
// returns a CORRUPTION error. A missing checkpoint returns NOT_FOUND.
func (s *Store) Load(name string) ([]byte, uint64, error) {
	if err := validName(name); err != nil {
		return nil, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	primary := s.path(name)

	payload, version, primaryErr := readVerified(primary)
	if primaryErr == nil {
		return payload, version, nil
	}
	if os.IsNotExist(primaryErr) {
		return nil, 0, errors.NotFound(fmt.Sprintf("checkpoint %s not found", name))
	}

	s.logger.Warn("primary checkpoint unusable, trying backup", map[string]interface{}{
		"checkpoint": name,
		"error":      primaryErr.Error(),
	})

	payload, version, backupErr := readVerified(primary + ".bak")
	if backupErr == nil {
		return payload, version, nil
	}

	return nil, 0, errors.Corruption(
		fmt.Sprintf("checkpoint %s unusable: primary: %v; backup: %v", name, primaryErr, backupErr))
}

// Latest returns the current version of the named checkpoint without
// reading the payload into the caller's hands twice.
func (s *Store) Latest(name string) (uint64, error) {
	_, version, err := s.Load(name)
	return version, err
}

// Delete removes a checkpoint and its backup. Missing files are ignored.
func (s *Store) Delete(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	primary := s.path(name)
	if err := os.Remove(primary); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(primary + ".bak"); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// readVerified reads one checkpoint file and verifies its checksum.
func readVerified(path string) ([]byte, uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if checksum(env.Payload) != env.Checksum {
		return nil, 0, fmt.Errorf("checksum mismatch in %s", filepath.Base(path))
	}
	return env.Payload, env.Version, nil
}
