package payload

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/skycoin/skycoin/src/util/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	loggingLevel, ok := os.LookupEnv("TEST_LOGGING_LEVEL")
	if ok {
		lvl, err := logging.LevelFromString(loggingLevel)
		if err != nil {
			log.Fatal(err)
		}
		logging.SetLevel(lvl)
	} else {
		logging.Disable()
	}

	os.Exit(m.Run())
}

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func tempDir(t *testing.T) string {
	dir, err := ioutil.TempDir("", "payload")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, os.RemoveAll(dir)) })
	return dir
}

func TestExtension(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"png", pngHeader, ".png"},
		{"jpeg", []byte{0xff, 0xd8, 0xff, 0xe0, 0, 0x10, 'J', 'F', 'I', 'F', 0}, ".jpg"},
		{"text", []byte("just some words\n"), ".txt"},
		{"unknown", []byte{0, 1, 2, 3, 0xfe, 0xfd}, fallbackExt},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Extension(tc.data))
		})
	}
}

func TestStoreLoad(t *testing.T) {
	dir := tempDir(t)

	path, err := Store(filepath.Join(dir, "out"), "", pngHeader)
	require.NoError(t, err)
	assert.Equal(t, DefaultName+".png", filepath.Base(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, got)
}

func TestStore_ExplicitName(t *testing.T) {
	dir := tempDir(t)

	path, err := Store(dir, "copy.raw", pngHeader)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "copy.raw"), path)

	_, err = Store(dir, filepath.Join("a", "b"), pngHeader)
	assert.Error(t, err)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(tempDir(t), "missing"))
	assert.Error(t, err)
}
