// Package blob moves reconstruction inputs and outputs between the
// local filesystem and S3-compatible object storage. Locations are
// plain file paths or s3://bucket/key URIs.
package blob

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store reads and writes whole blobs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// Resolve picks the store responsible for a location and returns it
// together with the key to use against it. s3://bucket/key resolves to
// an S3 store on that bucket; anything else is a local path.
func Resolve(ctx context.Context, location string) (Store, string, error) {
	if !strings.HasPrefix(location, "s3://") {
		return FS{}, location, nil
	}

	u, err := url.Parse(location)
	if err != nil {
		return nil, "", fmt.Errorf("invalid s3 location %s: %w", location, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return nil, "", fmt.Errorf("s3 location %s needs both a bucket and a key", location)
	}

	store, err := NewS3(ctx, s3ConfigFromEnv(u.Host))
	if err != nil {
		return nil, "", err
	}
	return store, key, nil
}

// FS stores blobs as local files; keys are paths.
type FS struct{}

// Get reads the file at key.
func (FS) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// Put writes the file at key, creating parent directories as needed.
func (FS) Put(_ context.Context, key string, data []byte) error {
	if dir := filepath.Dir(key); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", key, err)
		}
	}
	if err := os.WriteFile(key, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Memory is an in-process store for tests.
type Memory struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

// Get returns a copy of the stored blob.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, fmt.Errorf("blob %s not found", key)
	}
	return append([]byte(nil), data...), nil
}

// Put stores a copy of the blob.
func (m *Memory) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), data...)
	return nil
}
