package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AFrenchWrench/ustat-orders/internal/config"
)

func newTestStore(t *testing.T) (ProofStore, string) {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Config{}
	cfg.Storage.ProofDir = dir
	cfg.Storage.MaxUploadBytes = 64

	store, err := NewProofStore(cfg, zap.NewNop())
	require.NoError(t, err)
	return store, dir
}

func TestSaveAndRemove(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	ref, err := store.Save(ctx, 42, "cheque.jpg", bytes.NewReader([]byte("image-bytes")))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "proofs/42-"))
	assert.True(t, strings.HasSuffix(ref, ".jpg"))

	stored := filepath.Join(dir, filepath.Base(ref))
	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, []byte("image-bytes"), data)

	require.NoError(t, store.Remove(ctx, ref))
	_, err = os.Stat(stored)
	assert.True(t, os.IsNotExist(err))

	// Removing twice is fine.
	assert.NoError(t, store.Remove(ctx, ref))
}

func TestSaveRejectsBadUploads(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, 1, "notes.txt", bytes.NewReader([]byte("x")))
	assert.Error(t, err)

	_, err = store.Save(ctx, 1, "empty.png", bytes.NewReader(nil))
	assert.Error(t, err)

	_, err = store.Save(ctx, 1, "big.png", bytes.NewReader(bytes.Repeat([]byte("a"), 65)))
	assert.Error(t, err)

	// No stray files may survive a failed upload.
	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestSaveGeneratesUniqueRefs(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	ref1, err := store.Save(ctx, 7, "a.png", bytes.NewReader([]byte("one")))
	require.NoError(t, err)
	ref2, err := store.Save(ctx, 7, "a.png", bytes.NewReader([]byte("two")))
	require.NoError(t, err)

	assert.NotEqual(t, ref1, ref2)
}
