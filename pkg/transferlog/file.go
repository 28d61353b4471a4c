package transferlog

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/skycoin/stopwait/pkg/util/pathutil"
)

const fileExt = ".json"

type fileStore struct {
	dir string
}

// FileStore implements Store with one JSON file per entry in dir.
func FileStore(dir string) (Store, error) {
	dir, err := pathutil.EnsureDir(dir)
	if err != nil {
		return nil, err
	}
	return &fileStore{dir}, nil
}

func (s *fileStore) path(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+fileExt)
}

func (s *fileStore) Entry(id uuid.UUID) (*Entry, error) {
	return s.read(s.path(id))
}

func (s *fileStore) read(path string) (*Entry, error) {
	raw, err := ioutil.ReadFile(filepath.Clean(path))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "read")
	}

	entry := &Entry{}
	if err := json.Unmarshal(raw, entry); err != nil {
		return nil, errors.Wrap(err, "json")
	}
	return entry, nil
}

func (s *fileStore) Record(id uuid.UUID, entry *Entry) error {
	raw, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return errors.Wrap(err, "json")
	}
	return pathutil.AtomicWriteFile(s.path(id), raw)
}

func (s *fileStore) Entries() ([]*Entry, error) {
	files, err := ioutil.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrap(err, "read dir")
	}

	var out []*Entry
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		if _, err := uuid.Parse(strings.TrimSuffix(name, fileExt)); err != nil {
			continue
		}
		entry, err := s.read(filepath.Join(s.dir, name))
		if err != nil {
			log.WithError(err).Warnf("Skipping unreadable entry %s", name)
			continue
		}
		out = append(out, entry)
	}
	return sortEntries(out), nil
}

func (s *fileStore) Close() error { return nil }
