// Package upload stores client-uploaded media files on disk for later
// batch transcription.
package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Errors returned by the store.
var (
	ErrNotFound        = errors.New("file not found")
	ErrTooLarge        = errors.New("file exceeds size limit")
	ErrUnsupportedType = errors.New("unsupported media type")
)

// StoredFile describes one uploaded file.
type StoredFile struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"originalName"`
	MIMEType     string    `json:"mimeType"`
	Size         int64     `json:"size"`
	Path         string    `json:"-"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// Store keeps uploaded files in a directory with an in-memory index.
type Store struct {
	dir          string
	maxFileBytes int64
	counter      uint64

	mu    sync.RWMutex
	files map[string]StoredFile
}

// NewStore creates the upload directory if needed.
func NewStore(dir string, maxFileBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{
		dir:          dir,
		maxFileBytes: maxFileBytes,
		files:        make(map[string]StoredFile),
	}, nil
}

// IsAllowedType reports whether the MIME type is accepted for upload.
// Only audio and video media are transcribable.
func IsAllowedType(mimeType string) bool {
	return strings.HasPrefix(mimeType, "audio/") || strings.HasPrefix(mimeType, "video/")
}

// Save writes one uploaded file to disk and indexes it under a fresh ID.
func (s *Store) Save(originalName, mimeType string, r io.Reader) (StoredFile, error) {
	if !IsAllowedType(mimeType) {
		return StoredFile{}, ErrUnsupportedType
	}

	id := s.nextID()
	path := filepath.Join(s.dir, id+sanitizeExt(originalName))

	dst, err := os.Create(path)
	if err != nil {
		return StoredFile{}, fmt.Errorf("create file: %w", err)
	}

	written, err := io.Copy(dst, io.LimitReader(r, s.maxFileBytes+1))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return StoredFile{}, fmt.Errorf("write file: %w", err)
	}
	if written > s.maxFileBytes {
		os.Remove(path)
		return StoredFile{}, ErrTooLarge
	}

	file := StoredFile{
		ID:           id,
		OriginalName: originalName,
		MIMEType:     mimeType,
		Size:         written,
		Path:         path,
		UploadedAt:   time.Now(),
	}

	s.mu.Lock()
	s.files[id] = file
	s.mu.Unlock()

	return file, nil
}

// Get returns the stored file for the given ID.
func (s *Store) Get(id string) (StoredFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	file, ok := s.files[id]
	if !ok {
		return StoredFile{}, ErrNotFound
	}
	return file, nil
}

// Delete removes the file from disk and the index.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	file, ok := s.files[id]
	if ok {
		delete(s.files, id)
	}
	s.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	if err := os.Remove(file.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// List returns all stored files.
func (s *Store) List() []StoredFile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StoredFile, 0, len(s.files))
	for _, file := range s.files {
		out = append(out, file)
	}
	return out
}

func (s *Store) nextID() string {
	n := atomic.AddUint64(&s.counter, 1)
	return fmt.Sprintf("file-%d-%d", time.Now().UnixMilli(), n)
}

// sanitizeExt keeps a short, safe extension from the original name.
func sanitizeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) > 8 || strings.ContainsAny(ext, "/\\") {
		return ""
	}
	return ext
}
