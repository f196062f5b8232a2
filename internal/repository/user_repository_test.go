package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundstation/internal/models"
)

func TestFileUserRepository_CreatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "users.json")
	ctx := context.Background()

	repo, err := NewFileUserRepository(path)
	require.NoError(t, err)

	account := models.UserAccount{PasswordHash: "h", Role: models.RoleUser, CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.Create(ctx, "alice", account))
	assert.ErrorIs(t, repo.Create(ctx, "alice", account), ErrUserExists)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Contains(t, doc, "users")
	assert.Contains(t, doc, "metadata")

	reopened, err := NewFileUserRepository(path)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "h", got.PasswordHash)
	assert.Equal(t, models.RoleUser, got.Role)
}

func TestFileUserRepository_UpdateAndDelete(t *testing.T) {
	repo, err := NewFileUserRepository(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, repo.Update(ctx, "bob", models.UserAccount{}), ErrUserNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "bob"), ErrUserNotFound)

	require.NoError(t, repo.Create(ctx, "bob", models.UserAccount{PasswordHash: "old", Role: models.RoleUser}))
	require.NoError(t, repo.Update(ctx, "bob", models.UserAccount{PasswordHash: "new", Role: models.RoleUser}))

	got, err := repo.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "new", got.PasswordHash)

	require.NoError(t, repo.Delete(ctx, "bob"))
	_, err = repo.Get(ctx, "bob")
	assert.ErrorIs(t, err, ErrUserNotFound)

	users, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestFileUserRepository_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewFileUserRepository(path)
	assert.Error(t, err)
}
