package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"groundstation/internal/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

type UserRepository interface {
	Get(ctx context.Context, username string) (*models.UserAccount, error)
	List(ctx context.Context) (map[string]models.UserAccount, error)
	Create(ctx context.Context, username string, account models.UserAccount) error
	Update(ctx context.Context, username string, account models.UserAccount) error
	Delete(ctx context.Context, username string) error
}

type usersFile struct {
	Users    map[string]models.UserAccount `json:"users"`
	Metadata usersFileMetadata             `json:"metadata"`
}

type usersFileMetadata struct {
	Version     string    `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// fileUserRepository keeps every account in one JSON document keyed by
// username. The whole document is rewritten on each change.
type fileUserRepository struct {
	mu   sync.RWMutex
	path string
	data usersFile
}

func NewFileUserRepository(path string) (UserRepository, error) {
	r := &fileUserRepository{path: path}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *fileUserRepository) load() error {
	r.data = usersFile{
		Users: make(map[string]models.UserAccount),
		Metadata: usersFileMetadata{
			Version:   "1.0",
			CreatedAt: time.Now().UTC(),
		},
	}

	raw, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read users file: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}

	var stored usersFile
	if err := json.Unmarshal(raw, &stored); err != nil {
		return fmt.Errorf("failed to parse users file %s: %w", r.path, err)
	}
	if stored.Users != nil {
		r.data.Users = stored.Users
	}
	if !stored.Metadata.CreatedAt.IsZero() {
		r.data.Metadata = stored.Metadata
	}
	return nil
}

// save writes to a temp file in the same directory and renames it over the
// original so readers never see a half-written document.
func (r *fileUserRepository) save() error {
	r.data.Metadata.LastUpdated = time.Now().UTC()

	raw, err := json.MarshalIndent(r.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal users: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create users directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".users-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp users file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write users file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write users file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("failed to replace users file: %w", err)
	}
	return nil
}

func (r *fileUserRepository) Get(ctx context.Context, username string) (*models.UserAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.data.Users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &account, nil
}

func (r *fileUserRepository) List(ctx context.Context) (map[string]models.UserAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]models.UserAccount, len(r.data.Users))
	for name, account := range r.data.Users {
		out[name] = account
	}
	return out, nil
}

func (r *fileUserRepository) Create(ctx context.Context, username string, account models.UserAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.data.Users[username]; ok {
		return ErrUserExists
	}
	r.data.Users[username] = account
	if err := r.save(); err != nil {
		delete(r.data.Users, username)
		return err
	}
	return nil
}

func (r *fileUserRepository) Update(ctx context.Context, username string, account models.UserAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous, ok := r.data.Users[username]
	if !ok {
		return ErrUserNotFound
	}
	r.data.Users[username] = account
	if err := r.save(); err != nil {
		r.data.Users[username] = previous
		return err
	}
	return nil
}

func (r *fileUserRepository) Delete(ctx context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous, ok := r.data.Users[username]
	if !ok {
		return ErrUserNotFound
	}
	delete(r.data.Users, username)
	if err := r.save(); err != nil {
		r.data.Users[username] = previous
		return err
	}
	return nil
}
