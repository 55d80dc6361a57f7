package media

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveAndDeletePrefix(t *testing.T) {
	dir := t.TempDir()
	ls := &LocalStorage{UploadDir: dir}
	ctx := context.Background()

	url, err := ls.SaveFile(ctx, "abc/file.jpeg", []byte("x"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/abc/file.jpeg", url)
	_, err = os.Stat(filepath.Join(dir, "abc", "file.jpeg"))
	require.NoError(t, err)

	require.NoError(t, ls.DeletePrefix(ctx, "abc"))
	_, err = os.Stat(filepath.Join(dir, "abc"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	ls := &LocalStorage{UploadDir: t.TempDir()}
	_, err := ls.SaveFile(context.Background(), "../escape.jpeg", []byte("x"), "image/jpeg")
	assert.Error(t, err)
	assert.Error(t, ls.DeletePrefix(context.Background(), ""))
}

func TestAttachmentsSaveAndPurge(t *testing.T) {
	dir := t.TempDir()
	a := NewAttachments(&LocalStorage{UploadDir: dir}, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	ctx := context.Background()

	p, err := Process(encodePNG(t, 64, 64))
	require.NoError(t, err)

	imageURL, thumbURL, err := a.Save(ctx, "client-1", p)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(imageURL, "/uploads/"))
	assert.True(t, strings.HasSuffix(imageURL, ".png"))
	assert.True(t, strings.HasSuffix(thumbURL, "_thumb.jpeg"))
	assert.NotContains(t, imageURL, "client-1")

	other, _, err := a.Save(ctx, "client-2", p)
	require.NoError(t, err)

	a.Purge(ctx, "client-1")
	_, err = os.Stat(filepath.Join(dir, strings.TrimPrefix(imageURL, "/uploads/")))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, strings.TrimPrefix(other, "/uploads/")))
	assert.NoError(t, err, "other clients keep their files")
}

func TestAttachmentsDiscard(t *testing.T) {
	dir := t.TempDir()
	a := NewAttachments(&LocalStorage{UploadDir: dir}, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	ctx := context.Background()

	kept, err := Process(encodePNG(t, 32, 32))
	require.NoError(t, err)
	keptURL, _, err := a.Save(ctx, "client-1", kept)
	require.NoError(t, err)

	p, err := Process(encodePNG(t, 64, 48))
	require.NoError(t, err)
	imageURL, thumbURL, err := a.Save(ctx, "client-1", p)
	require.NoError(t, err)

	a.Discard(ctx, "client-1", p)
	for _, u := range []string{imageURL, thumbURL} {
		_, err = os.Stat(filepath.Join(dir, strings.TrimPrefix(u, "/uploads/")))
		assert.True(t, os.IsNotExist(err), u)
	}
	_, err = os.Stat(filepath.Join(dir, strings.TrimPrefix(keptURL, "/uploads/")))
	assert.NoError(t, err, "other uploads of the client stay")

	// Discarding twice is harmless.
	a.Discard(ctx, "client-1", p)
}
