//go:build integration || all

package blob_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/filevault/internal/domain"

	. "github.com/mkrupp/filevault/internal/repo/blob"
)

func setupFileSystemBlobTestRepo(t *testing.T) (repo *FileSystemRepository, tempDir string) {
	t.Helper()

	tempDir = t.TempDir()

	repo, err := NewFileSystemBlobRepository(context.TODO(), "test", "bin", FileSystemBlobRepositoryConfig{
		Basedir: tempDir,
	})
	require.NoError(t, err, "failed to create repository")

	return repo, tempDir
}

func verifyFileSystemBlobContent(t *testing.T, path string, expectedContent []byte) {
	t.Helper()

	content, err := os.ReadFile(path)
	require.NoError(t, err, "failed to read stored file")

	if !bytes.Equal(expectedContent, content) {
		t.Errorf("content mismatch\nwant: %s\ngot:  %s", expectedContent, content)
	}
}

func TestFileSystemBlobRepository_Layout(t *testing.T) {
	t.Parallel()

	repo, tempDir := setupFileSystemBlobTestRepo(t)

	assert.Equal(t, filepath.Join(tempDir, "test", "ab", "cd", "abcdef_320.bin"), repo.GetFilename("abcdef_320"))
	assert.Equal(t, filepath.Join(tempDir, "test", "00", "000a.bin"), repo.GetFilename("a"))
	assert.True(t, strings.HasPrefix(repo.GetFilename("../../x"), filepath.Join(tempDir, "test")))
}

func TestFileSystemBlobRepository_Store(t *testing.T) {
	t.Parallel()

	repo, _ := setupFileSystemBlobTestRepo(t)

	tests := []struct {
		name     string
		blob     *domain.Blob
		wantBody []byte
	}{
		{
			name:     "handles new blob",
			blob:     domain.NewBlob("newblob", []byte("original content")),
			wantBody: []byte("original content"),
		},
		{
			name:     "handles empty blob",
			blob:     domain.NewBlob("emptyblob", []byte("")),
			wantBody: []byte(""),
		},
		{
			name:     "handles large blob",
			blob:     domain.NewBlob("largeblob", make([]byte, 8*1024*1024)),
			wantBody: make([]byte, 8*1024*1024),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			require.NoError(t, repo.Store(context.TODO(), tt.blob))

			storedPath := repo.GetFilename(tt.blob.ID)
			verifyFileSystemBlobContent(t, storedPath, tt.wantBody)

			leftovers, err := filepath.Glob(storedPath + ".*.tmp")
			require.NoError(t, err)
			assert.Empty(t, leftovers)
		})
	}
}

func TestFileSystemBlobRepository_StoreReplaces(t *testing.T) {
	t.Parallel()

	repo, _ := setupFileSystemBlobTestRepo(t)
	ctx := context.TODO()

	require.NoError(t, repo.Store(ctx, domain.NewBlob("existingblob", []byte("original content"))))
	require.NoError(t, repo.Store(ctx, domain.NewBlob("existingblob", []byte("new"))))

	verifyFileSystemBlobContent(t, repo.GetFilename("existingblob"), []byte("new"))
}

func TestFileSystemBlobRepository_ConcurrentStore(t *testing.T) {
	t.Parallel()

	repo, _ := setupFileSystemBlobTestRepo(t)
	ctx := context.TODO()
	body := bytes.Repeat([]byte("x"), 64*1024)

	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			assert.NoError(t, repo.Store(ctx, domain.NewBlob("shared", body)))
		}()
	}

	wg.Wait()

	verifyFileSystemBlobContent(t, repo.GetFilename("shared"), body)
}

func TestFileSystemBlobRepository_Fetch(t *testing.T) {
	t.Parallel()

	repo, _ := setupFileSystemBlobTestRepo(t)
	ctx := context.TODO()

	_, err := repo.Fetch(ctx, "missingblob")
	require.ErrorIs(t, err, domain.ErrBlobNotFound)

	require.NoError(t, repo.Store(ctx, domain.NewBlob("blob", []byte("test content"))))

	fetched, err := repo.Fetch(ctx, "blob")
	require.NoError(t, err)
	assert.Equal(t, []byte("test content"), fetched.Bytes())
	assert.Equal(t, domain.BlobID("blob"), fetched.ID)
}
