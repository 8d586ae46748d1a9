package blob

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FSStore keeps audio files under a local directory and serves them through
// a URL prefix handled by the HTTP layer.
type FSStore struct {
	dir       string
	urlPrefix string
}

func NewFSStore(dir, urlPrefix string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	return &FSStore{dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

// Dir returns the backing directory, for static file serving.
func (s *FSStore) Dir() string { return s.dir }

func (s *FSStore) Put(_ context.Context, key string, data []byte) (string, error) {
	name := key + ".mp3"
	// Write-then-rename so a crashed write never leaves a partial file
	// visible under the served name.
	tmp := filepath.Join(s.dir, name+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write audio blob: %w", err)
	}
	final := filepath.Join(s.dir, name)
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("publish audio blob: %w", err)
	}
	return s.urlPrefix + "/" + name, nil
}

func (s *FSStore) Delete(_ context.Context, url string) error {
	name := path.Base(url)
	if name == "." || name == "/" || name == "" {
		return fmt.Errorf("invalid blob url %q", url)
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete audio blob: %w", err)
	}
	return nil
}
