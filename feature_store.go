package bloomstore

import (
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/wodeyoulai/bloomstore/filter"
)

// FeatureStore keeps per-user item sets in one shared Bloom filter by
// hashing "{user}^{item}" keys. Retrieve may return items that were
// never added for the user but never misses one that was.
type FeatureStore struct {
	lg       *zap.Logger
	filter   *filter.BloomFilter
	universe *universe
	journal  *Journal
	metrics  *storeMetrics
	// pairs counts applied (user, item) pairs, duplicates included
	pairs uint64
	mu    sync.RWMutex
}

type StoreOption func(*FeatureStore)

// WithRegistry registers the store metrics on r. A registry holding
// conflicting collectors leaves the store with unregistered metrics.
func WithRegistry(r *prometheus.Registry) StoreOption {
	return func(s *FeatureStore) {
		metrics, err := initMetrics(r)
		if err != nil {
			s.lg.Warn("store metrics not registered", zap.Error(err))
			return
		}
		s.metrics = metrics
	}
}

func withMetrics(m *storeMetrics) StoreOption {
	return func(s *FeatureStore) {
		s.metrics = m
	}
}

// WithJournal makes every Add durable in j before it is applied.
func WithJournal(j *Journal) StoreOption {
	return func(s *FeatureStore) {
		s.journal = j
	}
}

// Stats is a point-in-time summary of a FeatureStore.
type Stats struct {
	UniverseSize      int
	FilterSize        uint64
	HashFunctions     uint32
	FillRatio         float64
	PairsAdded        uint64
	EstimatedFPR      float64
	JournalLastIndex  uint64
	JournalingEnabled bool
}

// CompositeKey folds the user id into the filter key.
func CompositeKey(userID, itemID int64) string {
	buf := make([]byte, 0, 41)
	buf = strconv.AppendInt(buf, userID, 10)
	buf = append(buf, '^')
	buf = strconv.AppendInt(buf, itemID, 10)
	return string(buf)
}

// NewFeatureStore wraps f. The store owns f from here on.
func NewFeatureStore(lg *zap.Logger, f *filter.BloomFilter, opts ...StoreOption) *FeatureStore {
	if lg == nil {
		lg = zap.NewNop()
	}
	s := &FeatureStore{
		lg:       lg,
		filter:   f,
		universe: newUniverse(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics, _ = initMetrics(nil)
	}
	return s
}

// Open builds a store from opts and, when a journal directory is
// configured, replays the journal into it.
func Open(lg *zap.Logger, opts Options) (*FeatureStore, error) {
	if lg == nil {
		lg = zap.NewNop()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	f, err := opts.newFilter()
	if err != nil {
		return nil, err
	}

	metrics, err := initMetrics(opts.Registry)
	if err != nil {
		return nil, err
	}
	storeOpts := []StoreOption{withMetrics(metrics)}
	var journal *Journal
	if opts.JournalDir != "" {
		journal, err = OpenJournal(lg, opts.JournalDir, opts.JournalNoSync)
		if err != nil {
			return nil, err
		}
		storeOpts = append(storeOpts, WithJournal(journal))
	}
	s := NewFeatureStore(lg, f, storeOpts...)

	if journal != nil {
		start := time.Now()
		n, err := journal.Replay(func(rec Record) error {
			s.apply(rec.UserID, rec.ItemIDs)
			return nil
		})
		if err != nil {
			s.metrics.journalErrors.Inc()
			_ = journal.Close()
			return nil, errors.Wrap(err, "replay journal")
		}
		s.refreshGauges()
		lg.Info("feature store recovered",
			zap.Int("records", n),
			zap.Int("universe", s.universe.Len()),
			zap.Duration("took", time.Since(start)))
	}
	lg.Info("feature store opened",
		zap.Uint64("filterSize", f.Size()),
		zap.Uint32("hashFunctions", f.HashCount()),
		zap.Bool("journal", journal != nil))
	return s, nil
}

// Add records that userID owns itemIDs. It only fails when the journal
// rejects the write, in which case nothing is applied.
func (s *FeatureStore) Add(userID int64, itemIDs []int64) error {
	if len(itemIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.journal != nil {
		start := time.Now()
		idx, err := s.journal.Append(Record{UserID: userID, ItemIDs: itemIDs})
		if err != nil {
			s.metrics.journalErrors.Inc()
			return errors.Wrapf(err, "add user %d", userID)
		}
		s.metrics.journalAppendTotal.Inc()
		s.metrics.journalAppendLatency.Observe(time.Since(start).Seconds())
		s.lg.Debug("journaled add", zap.Int64("user", userID), zap.Uint64("index", idx))
	}

	s.apply(userID, itemIDs)
	s.metrics.addTotal.Inc()
	s.metrics.universeSize.Set(float64(s.universe.Len()))
	return nil
}

func (s *FeatureStore) apply(userID int64, itemIDs []int64) {
	for _, itemID := range itemIDs {
		s.universe.Insert(itemID)
		s.filter.Add(CompositeKey(userID, itemID))
	}
	s.pairs += uint64(len(itemIDs))
	s.metrics.itemsAdded.Add(float64(len(itemIDs)))
}

// refreshGauges recounts the filter bits, so Add leaves the fill ratio
// to Stats and recovery.
func (s *FeatureStore) refreshGauges() {
	s.metrics.universeSize.Set(float64(s.universe.Len()))
	s.metrics.fillRatio.Set(s.filter.FillRatio())
}

// Retrieve probes every item in the universe for userID and returns the
// ones the filter may hold, in ascending order.
func (s *FeatureStore) Retrieve(userID int64) []int64 {
	start := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	ret := make([]int64, 0)
	s.universe.Each(func(itemID int64) bool {
		if s.filter.MightContain(CompositeKey(userID, itemID)) {
			ret = append(ret, itemID)
		}
		return true
	})

	s.metrics.retrieveTotal.Inc()
	s.metrics.retrieveResults.Observe(float64(len(ret)))
	s.metrics.retrieveLatency.Observe(time.Since(start).Seconds())
	return ret
}

func (s *FeatureStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		UniverseSize:  s.universe.Len(),
		FilterSize:    s.filter.Size(),
		HashFunctions: s.filter.HashCount(),
		FillRatio:     s.filter.FillRatio(),
		PairsAdded:    s.pairs,
		EstimatedFPR:  s.filter.EstimatedFalsePositiveRate(s.pairs),
	}
	s.metrics.fillRatio.Set(st.FillRatio)
	if s.journal != nil {
		st.JournalingEnabled = true
		st.JournalLastIndex = s.journal.LastAppended()
	}
	return st
}

// Close releases the journal. It is safe to call more than once.
func (s *FeatureStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil
	}
	if err := s.journal.Close(); err != nil {
		return errors.Wrap(err, "close journal")
	}
	return nil
}
