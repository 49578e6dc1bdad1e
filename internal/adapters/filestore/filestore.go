// Package filestore keeps uploaded and generated files on local disk or S3.
// Stored objects are served back through the API under PublicBaseURL/<name>.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/PabloGalante/insighter/internal/domain"
)

const DefaultMaxBytes = 16 << 20

// ErrTooLarge is returned when an upload exceeds the configured limit.
var ErrTooLarge = errors.New("file exceeds the upload size limit")

// storageName is a fresh random name that keeps the original extension.
func storageName(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return strings.ReplaceAll(uuid.NewString(), "-", "") + ext
}

func mimeFor(filename string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); t != "" {
		return t
	}
	return "application/octet-stream"
}

// validName rejects anything that could escape the storage root.
func validName(name string) bool {
	return name != "" &&
		name != "." &&
		name != ".." &&
		!strings.ContainsAny(name, `/\`) &&
		filepath.Base(name) == name
}

func publicURL(baseURL, name string) string {
	return strings.TrimRight(baseURL, "/") + "/" + name
}

// nameFromURL maps a URL issued by this store back to its object name.
func nameFromURL(baseURL, url string) (string, error) {
	prefix := strings.TrimRight(baseURL, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", domain.ErrNotFound
	}
	name := strings.TrimPrefix(url, prefix)
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	if !validName(name) {
		return "", domain.ErrNotFound
	}
	return name, nil
}

// readLimited reads r fully, failing with ErrTooLarge past maxBytes.
func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}
