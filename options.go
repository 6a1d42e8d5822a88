package bloomstore

import (
	"os"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/wodeyoulai/bloomstore/filter"
)

type HashScheme string

const (
	HashSaltedSHA256 HashScheme = "sha256"
	HashXXHashDouble HashScheme = "xxhash"
)

var ErrUnknownHashScheme = errors.New("unknown hash scheme")

// Options configures a FeatureStore opened with Open.
type Options struct {
	FilterSize    int        `yaml:"filter_size"`
	HashFunctions int        `yaml:"hash_functions"`
	Hash          HashScheme `yaml:"hash"`
	// JournalDir enables the durable journal when non-empty.
	JournalDir    string `yaml:"journal_dir"`
	JournalNoSync bool   `yaml:"journal_no_sync"`

	// Registry receives the store metrics. Nil disables registration.
	Registry *prometheus.Registry `yaml:"-"`
}

func DefaultOptions() Options {
	return Options{
		FilterSize:    1 << 20,
		HashFunctions: 7,
		Hash:          HashSaltedSHA256,
	}
}

func (o Options) Validate() error {
	if o.FilterSize <= 0 {
		return errors.Wrapf(filter.ErrInvalidSize, "filter_size %d", o.FilterSize)
	}
	if o.HashFunctions <= 0 {
		return errors.Wrapf(filter.ErrInvalidHashCount, "hash_functions %d", o.HashFunctions)
	}
	_, err := o.hasher()
	return err
}

func (o Options) hasher() (filter.Hasher, error) {
	switch o.Hash {
	case "", HashSaltedSHA256:
		return filter.SaltedSHA256{}, nil
	case HashXXHashDouble:
		return filter.XXHashDouble{}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownHashScheme, "%q", o.Hash)
	}
}

func (o Options) newFilter() (*filter.BloomFilter, error) {
	h, err := o.hasher()
	if err != nil {
		return nil, err
	}
	return filter.New(o.FilterSize, o.HashFunctions, filter.WithHasher(h))
}

// LoadOptions reads YAML options from path on top of DefaultOptions.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, errors.Wrap(err, "read options")
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, errors.Wrapf(err, "parse options %s", path)
	}
	return opts, opts.Validate()
}
