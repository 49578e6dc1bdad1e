package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/PabloGalante/insighter/internal/domain"
)

// Local stores files in a directory.
type Local struct {
	dir      string
	baseURL  string
	maxBytes int64
}

func NewLocal(dir, baseURL string, maxBytes int64) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: dir, baseURL: baseURL, maxBytes: maxBytes}, nil
}

func (l *Local) Upload(_ context.Context, r io.Reader, filename string) (*domain.FileRef, error) {
	data, err := readLimited(r, l.maxBytes)
	if err != nil {
		return nil, err
	}

	name := storageName(filename)
	if err := os.WriteFile(filepath.Join(l.dir, name), data, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", name, err)
	}

	return &domain.FileRef{
		URL:       publicURL(l.baseURL, name),
		MimeType:  mimeFor(filename),
		Filename:  filename,
		SizeBytes: int64(len(data)),
	}, nil
}

func (l *Local) Open(_ context.Context, name string) (io.ReadCloser, *domain.FileRef, error) {
	if !validName(name) {
		return nil, nil, domain.ErrNotFound
	}

	f, err := os.Open(filepath.Join(l.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", name, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat %s: %w", name, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, domain.ErrNotFound
	}

	return f, &domain.FileRef{
		URL:       publicURL(l.baseURL, name),
		MimeType:  mimeFor(name),
		Filename:  name,
		SizeBytes: info.Size(),
	}, nil
}

// Download returns domain.ErrNotFound for URLs this store did not issue.
func (l *Local) Download(ctx context.Context, url string) ([]byte, error) {
	name, err := nameFromURL(l.baseURL, url)
	if err != nil {
		return nil, err
	}
	rc, _, err := l.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
