package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/neuroshield/scan-api/pkg/errors"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()

	store, err := NewLocalStore(t.TempDir(), 1024)
	require.NoError(t, err)
	return store
}

func TestSaveAndOpen(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	key, err := store.Save(ctx, "brain.png", strings.NewReader("imagebytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(key, ".png"))
	assert.NotEqual(t, "brain.png", key)

	rc, err := store.Open(ctx, key)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "imagebytes", string(data))
}

func TestSaveGeneratesUniqueKeys(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	k1, err := store.Save(ctx, "scan.jpg", strings.NewReader("a"))
	require.NoError(t, err)
	k2, err := store.Save(ctx, "scan.jpg", strings.NewReader("b"))
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestSaveRejectsDisallowedExtension(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save(context.Background(), "malware.exe", strings.NewReader("x"))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrStorage))
}

func TestSaveRejectsEmptyFile(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save(context.Background(), "empty.png", strings.NewReader(""))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrStorage))
}

func TestSaveRejectsOversizedFile(t *testing.T) {
	store := newTestStore(t)

	big := strings.Repeat("x", 2048)
	_, err := store.Save(context.Background(), "big.png", strings.NewReader(big))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrStorage))
}

func TestSaveSanitizesHostileFilename(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	key, err := store.Save(ctx, "../../etc/passwd.png", strings.NewReader("imagebytes"))
	require.NoError(t, err)
	assert.NotContains(t, key, "..")
	assert.NotContains(t, key, "/")
}

func TestOpenRejectsTraversalKeys(t *testing.T) {
	store := newTestStore(t)

	for _, key := range []string{"", "../secret.png", "a/b.png", "..%2fb.png"} {
		_, err := store.Open(context.Background(), key)
		assert.Error(t, err, "key %q", key)
	}
}

func TestOpenMissingKey(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Open(context.Background(), "does-not-exist.png")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	key, err := store.Save(ctx, "scan.png", strings.NewReader("imagebytes"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, key))

	_, err = store.Open(ctx, key)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestSanitizeExtension(t *testing.T) {
	assert.Equal(t, ".png", sanitizeExtension("brain.PNG"))
	assert.Equal(t, ".jpeg", sanitizeExtension("a.b.c.JPEG"))
	assert.Equal(t, "", sanitizeExtension("noext"))
	assert.Equal(t, ".png", sanitizeExtension("weird.p;n g"))
}
