package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/insighter/internal/domain"
)

const testBase = "http://localhost:8080/files"

func newLocal(t *testing.T, maxBytes int64) (*Local, string) {
	t.Helper()
	dir := t.TempDir()
	l, err := NewLocal(dir, testBase, maxBytes)
	require.NoError(t, err)
	return l, dir
}

func TestUploadAndDownload(t *testing.T) {
	l, dir := newLocal(t, 1024)
	ctx := context.Background()

	ref, err := l.Upload(ctx, strings.NewReader("%PDF-1.4"), "Sales.PDF")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(ref.URL, testBase+"/"))
	assert.True(t, strings.HasSuffix(ref.URL, ".pdf"))
	assert.Equal(t, "Sales.PDF", ref.Filename)
	assert.Equal(t, int64(8), ref.SizeBytes)
	assert.Equal(t, "application/pdf", ref.MimeType)

	name := strings.TrimPrefix(ref.URL, testBase+"/")
	assert.Len(t, name, 32+len(".pdf"))
	_, err = os.Stat(filepath.Join(dir, name))
	require.NoError(t, err)

	data, err := l.Download(ctx, ref.URL)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	rc, info, err := l.Open(ctx, name)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data, body)
	assert.Equal(t, int64(8), info.SizeBytes)
}

func TestUploadTooLarge(t *testing.T) {
	l, dir := newLocal(t, 4)
	_, err := l.Upload(context.Background(), strings.NewReader("12345"), "x.txt")
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOpenRejectsTraversal(t *testing.T) {
	l, _ := newLocal(t, 0)
	for _, name := range []string{"", "..", "../etc/passwd", "a/b", `a\b`} {
		_, _, err := l.Open(context.Background(), name)
		assert.ErrorIs(t, err, domain.ErrNotFound, name)
	}
}

func TestDownloadForeignURL(t *testing.T) {
	l, _ := newLocal(t, 0)
	_, err := l.Download(context.Background(), "https://example.com/report.pdf")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = l.Download(context.Background(), testBase+"/missing.pdf")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNameFromURL(t *testing.T) {
	name, err := nameFromURL(testBase+"/", testBase+"/abc.png?x=1")
	require.NoError(t, err)
	assert.Equal(t, "abc.png", name)

	_, err = nameFromURL(testBase, testBase+"/a/../b")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestS3Key(t *testing.T) {
	assert.Equal(t, "abc.pdf", (&S3{}).key("abc.pdf"))
	assert.Equal(t, "uploads/abc.pdf", (&S3{prefix: "uploads/"}).key("abc.pdf"))
}
