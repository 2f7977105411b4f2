// Package blob provides small byte-blob providers used as durable per-browser slots.
// Backends are the local filesystem and S3; Prefixed scopes any provider to a namespace.
package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Read when no blob is stored at the key.
var ErrNotFound = errors.New("blob not found")

// Provider stores opaque blobs by key.
type Provider interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	// Delete is idempotent: deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Local stores blobs as files under a base directory.
type Local struct {
	baseDir string
}

// NewLocal creates a filesystem provider rooted at baseDir.
func NewLocal(baseDir string) *Local {
	return &Local{baseDir: baseDir}
}

func (l *Local) path(key string) (string, error) {
	full := filepath.Join(l.baseDir, filepath.FromSlash(key))
	if !strings.HasPrefix(full, filepath.Clean(l.baseDir)+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes base directory", key)
	}
	return full, nil
}

func (l *Local) Read(_ context.Context, key string) ([]byte, error) {
	p, err := l.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p) //nolint:gosec // G304: path is confined to baseDir above
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (l *Local) Write(_ context.Context, key string, data []byte) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}
	// write-then-rename so a crashed write never leaves a torn slot behind
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

func (l *Local) Delete(_ context.Context, key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Prefixed scopes every key of an underlying provider under prefix/.
type Prefixed struct {
	provider Provider
	prefix   string
}

// NewPrefixed wraps provider so that all keys live under prefix.
func NewPrefixed(provider Provider, prefix string) *Prefixed {
	return &Prefixed{provider: provider, prefix: strings.Trim(prefix, "/")}
}

func (p *Prefixed) key(k string) string {
	if p.prefix == "" {
		return k
	}
	return p.prefix + "/" + k
}

func (p *Prefixed) Read(ctx context.Context, key string) ([]byte, error) {
	return p.provider.Read(ctx, p.key(key))
}

func (p *Prefixed) Write(ctx context.Context, key string, data []byte) error {
	return p.provider.Write(ctx, p.key(key), data)
}

func (p *Prefixed) Delete(ctx context.Context, key string) error {
	return p.provider.Delete(ctx, p.key(key))
}
