package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Test hooks to allow overriding filesystem functions
var (
	readFileFunc = os.ReadFile
	renameFunc   = os.Rename
)

type document struct {
	Users map[string]userDocument `json:"users"`
}

type userDocument struct {
	Proxies []Entry `json:"proxies"`
}

// FileStore keeps the whole ledger in one JSON document. Every call reads
// the file; every write replaces it atomically.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file need not exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) load() (document, error) {
	doc := document{Users: map[string]userDocument{}}

	data, err := readFileFunc(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("%w: read %s: %v", ErrIO, s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	if doc.Users == nil {
		doc.Users = map[string]userDocument{}
	}
	return doc, nil
}

func (s *FileStore) save(doc document) error {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrIO, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create dir: %v", ErrIO, err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*.json")
	if err != nil {
		return fmt.Errorf("%w: create temp: %v", ErrIO, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write temp: %v", ErrIO, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync temp: %v", ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp: %v", ErrIO, err)
	}
	if err := renameFunc(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: replace %s: %v", ErrIO, s.path, err)
	}
	return nil
}

// Get returns the user's record.
func (s *FileStore) Get(_ context.Context, userID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return Record{}, err
	}
	rec := Record{UserID: userID}
	if u, ok := doc.Users[userID]; ok {
		rec.Entries = append([]Entry(nil), u.Proxies...)
	}
	return rec, nil
}

// Put replaces the user's record and rewrites the file.
func (s *FileStore) Put(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if len(rec.Entries) == 0 {
		delete(doc.Users, rec.UserID)
	} else {
		doc.Users[rec.UserID] = userDocument{Proxies: append([]Entry(nil), rec.Entries...)}
	}
	return s.save(doc)
}

// Delete removes the user's record.
func (s *FileStore) Delete(ctx context.Context, userID string) error {
	return s.Put(ctx, Record{UserID: userID})
}

// Users lists user ids with at least one entry, sorted.
func (s *FileStore) Users(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(doc.Users))
	for id, u := range doc.Users {
		if len(u.Proxies) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
