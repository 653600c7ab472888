package store

import (
	"bytes"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrLocked is returned when reading a sealed value before Unlock.
	ErrLocked = errors.New("state store is locked: passphrase required")
	// ErrWrongPassphrase is returned by Unlock when the passphrase does not
	// match the one the vault was created with.
	ErrWrongPassphrase = errors.New("wrong passphrase")
)

var vaultCheck = []byte("safealert-vault-v1")

// StateStore is a persistent key/value store for client state. Values written
// with SetSealed are encrypted once the store has been unlocked.
type StateStore struct {
	db *sql.DB

	mu     sync.RWMutex
	sealer *Sealer
}

func NewStateStore(db *sql.DB) *StateStore {
	return &StateStore{db: db}
}

// Unlock enables sealing. The first call on a database creates the vault;
// later calls must use the same passphrase.
func (s *StateStore) Unlock(passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("unlock: empty passphrase")
	}

	var salt, check []byte
	err := s.db.QueryRow(`SELECT salt, check_blob FROM vault WHERE id = 1`).Scan(&salt, &check)
	if err == sql.ErrNoRows {
		return s.createVault(passphrase)
	}
	if err != nil {
		return fmt.Errorf("load vault: %w", err)
	}

	sealer, err := NewSealer(passphrase, salt)
	if err != nil {
		return err
	}
	plain, err := sealer.Open(check)
	if err != nil || !bytes.Equal(plain, vaultCheck) {
		return ErrWrongPassphrase
	}

	s.mu.Lock()
	s.sealer = sealer
	s.mu.Unlock()
	return nil
}

func (s *StateStore) createVault(passphrase string) error {
	salt, err := GenerateSalt()
	if err != nil {
		return err
	}
	sealer, err := NewSealer(passphrase, salt)
	if err != nil {
		return err
	}
	check, err := sealer.Seal(vaultCheck)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(`INSERT INTO vault (id, salt, check_blob) VALUES (1, ?, ?)`, salt, check); err != nil {
		return fmt.Errorf("create vault: %w", err)
	}

	s.mu.Lock()
	s.sealer = sealer
	s.mu.Unlock()
	return nil
}

// Sealing reports whether SetSealed encrypts values.
func (s *StateStore) Sealing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sealer != nil
}

// Get returns the value for key. ok is false when the key is absent.
func (s *StateStore) Get(key string) (value string, ok bool, err error) {
	var sealed bool
	err = s.db.QueryRow(`SELECT value, sealed FROM client_state WHERE key = ?`, key).Scan(&value, &sealed)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get state %q: %w", key, err)
	}
	if !sealed {
		return value, true, nil
	}
	plain, err := s.open(value)
	if err != nil {
		return "", false, fmt.Errorf("get state %q: %w", key, err)
	}
	return plain, true, nil
}

// Set stores value in the clear.
func (s *StateStore) Set(key, value string) error {
	return s.put(s.db, key, value, false)
}

// SetSealed stores value encrypted when the store is unlocked, in the clear otherwise.
func (s *StateStore) SetSealed(key, value string) error {
	return s.put(s.db, key, value, s.Sealing())
}

// SetSealedMany writes several sealed values in one transaction.
func (s *StateStore) SetSealedMany(values map[string]string) error {
	seal := s.Sealing()
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for k, v := range values {
		if err := s.put(tx, k, v, seal); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Update replaces the value of key with the result of fn in a single transaction.
func (s *StateStore) Update(key string, fn func(old string, ok bool) (string, error)) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var old string
	ok := true
	err = tx.QueryRow(`SELECT value FROM client_state WHERE key = ? AND sealed = 0`, key).Scan(&old)
	if err == sql.ErrNoRows {
		ok = false
	} else if err != nil {
		return fmt.Errorf("update state %q: %w", key, err)
	}

	next, err := fn(old, ok)
	if err != nil {
		return err
	}
	if err := s.put(tx, key, next, false); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes keys in one transaction. Missing keys are ignored.
func (s *StateStore) Delete(keys ...string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, k := range keys {
		if _, err := tx.Exec(`DELETE FROM client_state WHERE key = ?`, k); err != nil {
			return fmt.Errorf("delete state %q: %w", k, err)
		}
	}
	return tx.Commit()
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (s *StateStore) put(db execer, key, value string, seal bool) error {
	stored := value
	if seal {
		sealed, err := s.seal(value)
		if err != nil {
			return fmt.Errorf("set state %q: %w", key, err)
		}
		stored = sealed
	}
	_, err := db.Exec(
		`INSERT INTO client_state (key, value, sealed, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, sealed = excluded.sealed, updated_at = excluded.updated_at`,
		key, stored, seal, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set state %q: %w", key, err)
	}
	return nil
}

func (s *StateStore) seal(value string) (string, error) {
	s.mu.RLock()
	sealer := s.sealer
	s.mu.RUnlock()
	if sealer == nil {
		return "", ErrLocked
	}
	out, err := sealer.Seal([]byte(value))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

func (s *StateStore) open(value string) (string, error) {
	s.mu.RLock()
	sealer := s.sealer
	s.mu.RUnlock()
	if sealer == nil {
		return "", ErrLocked
	}
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return "", fmt.Errorf("decode sealed value: %w", err)
	}
	plain, err := sealer.Open(raw)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
