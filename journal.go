package bloomstore

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	pWal "github.com/tidwall/wal"
	"go.uber.org/zap"
)

var ErrJournalClosed = errors.New("journal is closed")

// Journal is an append-only log of Add records
type Journal struct {
	log       *pWal.Log
	mu        sync.Mutex
	logger    *zap.Logger
	closed    atomic.Bool
	closeOnce sync.Once
	lastIndex uint64
}

func OpenJournal(logger *zap.Logger, dir string, noSync bool) (*Journal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := *pWal.DefaultOptions
	opts.NoSync = noSync

	inWal, err := pWal.Open(dir, &opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open journal %s", dir)
	}
	lastIndex, err := inWal.LastIndex()
	if err != nil {
		_ = inWal.Close()
		return nil, errors.Wrap(err, "get journal last index")
	}

	logger.Info("journal opened", zap.String("dir", dir), zap.Uint64("lastIndex", lastIndex))
	return &Journal{
		log:       inWal,
		logger:    logger,
		lastIndex: lastIndex,
	}, nil
}

// Append writes rec durably (unless NoSync) and returns its index.
func (j *Journal) Append(rec Record) (uint64, error) {
	if j.closed.Load() {
		return 0, ErrJournalClosed
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	next := j.lastIndex + 1
	if err := j.log.Write(next, rec.Marshal()); err != nil {
		j.logger.Error("journal append failed", zap.Uint64("index", next), zap.Error(err))
		return 0, errors.Wrapf(err, "append journal index %d", next)
	}
	j.lastIndex = next
	return next, nil
}

func (j *Journal) LastAppended() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastIndex
}

// Replay feeds every stored record to fn in append order.
func (j *Journal) Replay(fn func(Record) error) (int, error) {
	if j.closed.Load() {
		return 0, ErrJournalClosed
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	first, err := j.log.FirstIndex()
	if err != nil {
		return 0, errors.Wrap(err, "get journal first index")
	}
	if first == 0 {
		return 0, nil
	}

	replayed := 0
	for idx := first; idx <= j.lastIndex; idx++ {
		data, err := j.log.Read(idx)
		if err != nil {
			return replayed, errors.Wrapf(err, "read journal index %d", idx)
		}
		rec, err := UnmarshalRecord(data)
		if err != nil {
			j.logger.Error("journal record unreadable", zap.Uint64("index", idx), zap.Error(err))
			return replayed, errors.Wrapf(err, "journal index %d", idx)
		}
		if err := fn(rec); err != nil {
			return replayed, err
		}
		replayed++
	}
	return replayed, nil
}

func (j *Journal) Close() error {
	var err error
	j.closeOnce.Do(func() {
		j.closed.Store(true)
		j.mu.Lock()
		defer j.mu.Unlock()
		err = j.log.Close()
		j.logger.Info("journal closed", zap.Uint64("lastIndex", j.lastIndex))
	})
	return err
}
