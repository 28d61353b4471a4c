// Package payload reads the bytes to transfer and stores reassembled ones.
package payload

import (
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/skycoin/skycoin/src/util/logging"

	"github.com/skycoin/stopwait/pkg/util/pathutil"
)

// DefaultName is the base name of a stored payload when none is given.
const DefaultName = "received_image"

// fallbackExt is used when the content type has no known extension.
const fallbackExt = ".bin"

var log = logging.MustGetLogger("payload")

// Load reads the whole file at path.
func Load(path string) ([]byte, error) {
	path, err := pathutil.Expand(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to expand payload path")
	}
	data, err := ioutil.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read payload")
	}
	log.Debugf("loaded %d bytes from %s", len(data), path)
	return data, nil
}

// Extension returns the file extension matching the content of data,
// including the leading dot.
func Extension(data []byte) string {
	if ext := mimetype.Detect(data).Extension(); ext != "" {
		return ext
	}
	return fallbackExt
}

// Store writes data into dir as name. When name has no extension one is
// detected from the content; an empty name means DefaultName. The directory
// is created if missing. It returns the path written.
func Store(dir, name string, data []byte) (string, error) {
	if name == "" {
		name = DefaultName
	}
	if filepath.Ext(name) == "" {
		name += Extension(data)
	}
	if strings.ContainsRune(name, filepath.Separator) {
		return "", errors.Errorf("invalid payload name %q", name)
	}

	if dir == "" {
		dir = "."
	}
	dir, err := pathutil.EnsureDir(dir)
	if err != nil {
		return "", errors.Wrap(err, "failed to prepare output directory")
	}

	path := filepath.Join(dir, name)
	if err := pathutil.AtomicWriteFile(path, data); err != nil {
		return "", errors.Wrap(err, "failed to store payload")
	}
	log.Infof("stored %d bytes to %s", len(data), path)
	return path, nil
}
