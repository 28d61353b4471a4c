package pathutil

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
)

// HomeDir obtains the path to the user's home directory, or an empty string
// when it cannot be determined.
func HomeDir() string {
	home, err := homedir.Dir()
	if err != nil {
		log.WithError(err).Debug("Failed to determine home directory")
		return ""
	}
	return home
}

// Expand resolves a leading '~' in path to the user's home directory.
func Expand(path string) (string, error) {
	return homedir.Expand(path)
}

// EnsureDir expands and creates the directory at path if it does not exist
// and returns its absolute form.
func EnsureDir(path string) (string, error) {
	path, err := Expand(path)
	if err != nil {
		return "", errors.Wrap(err, "failed to expand path")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrap(err, "failed to expand path")
	}
	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		if err := os.MkdirAll(absPath, 0750); err != nil {
			return "", errors.Wrap(err, "failed to create dir")
		}
	}
	return absPath, nil
}

// AtomicWriteFile writes data to a temp file next to filename and renames it
// over filename. On failure the temp file is removed.
func AtomicWriteFile(filename string, data []byte) error {
	dir, name := filepath.Split(filename)
	if dir == "" {
		dir = "."
	}
	f, err := ioutil.TempFile(dir, "."+name+".tmp")
	if err != nil {
		return err
	}

	_, err = f.Write(data)
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if permErr := os.Chmod(f.Name(), 0600); err == nil {
		err = permErr
	}
	if err == nil {
		err = os.Rename(f.Name(), filename)
	}

	if err != nil {
		if rmErr := os.Remove(f.Name()); rmErr != nil {
			log.WithError(rmErr).Warnf("Failed to remove file %s", f.Name())
		}
		return err
	}
	return nil
}
