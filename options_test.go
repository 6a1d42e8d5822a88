package bloomstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wodeyoulai/bloomstore/filter"
)

func writeOptions(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bloomstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultOptionsValid(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())
}

func TestLoadOptions(t *testing.T) {
	path := writeOptions(t, `
filter_size: 800
hash_functions: 10
hash: xxhash
journal_dir: /var/lib/bloomstore
journal_no_sync: true
`)
	opts, err := LoadOptions(path)
	require.NoError(t, err)
	assert.Equal(t, 800, opts.FilterSize)
	assert.Equal(t, 10, opts.HashFunctions)
	assert.Equal(t, HashXXHashDouble, opts.Hash)
	assert.Equal(t, "/var/lib/bloomstore", opts.JournalDir)
	assert.True(t, opts.JournalNoSync)
}

func TestLoadOptionsKeepsDefaults(t *testing.T) {
	opts, err := LoadOptions(writeOptions(t, "hash_functions: 3\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions().FilterSize, opts.FilterSize)
	assert.Equal(t, 3, opts.HashFunctions)
	assert.Equal(t, HashSaltedSHA256, opts.Hash)
}

func TestLoadOptionsErrors(t *testing.T) {
	_, err := LoadOptions(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadOptions(writeOptions(t, "filter_size: [1, 2"))
	assert.Error(t, err)

	_, err = LoadOptions(writeOptions(t, "filter_size: -1\n"))
	assert.True(t, errors.Is(err, filter.ErrInvalidSize), "got %v", err)

	_, err = LoadOptions(writeOptions(t, "hash_functions: 0\n"))
	assert.True(t, errors.Is(err, filter.ErrInvalidHashCount), "got %v", err)

	_, err = LoadOptions(writeOptions(t, "hash: crc32\n"))
	assert.True(t, errors.Is(err, ErrUnknownHashScheme), "got %v", err)
}
