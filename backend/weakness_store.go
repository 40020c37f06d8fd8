package main

import (
	"encoding/json"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

const weaknessKeyPrefix = "weakness/"

// WeaknessStore persists weakness signatures across sessions. The public
// surface is append and read only; the engine observes and consumes, it
// never erases a learner's history. The ring stays bounded by evicting
// the stalest signature internally once the cap is exceeded.
type WeaknessStore struct {
	db  *badger.DB
	cap int
	log zerolog.Logger
}

// OpenWeaknessStore opens the backing database at path, or in memory
// when path is empty.
func OpenWeaknessStore(path string, capacity int, log zerolog.Logger) (*WeaknessStore, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	if capacity <= 0 {
		capacity = DefaultConfig().WeaknessStoreCap
	}
	return &WeaknessStore{db: db, cap: capacity, log: log}, nil
}

func (s *WeaknessStore) Close() error {
	return s.db.Close()
}

func weaknessKey(category string) []byte {
	return []byte(weaknessKeyPrefix + category)
}

// Append upserts a signature under its category. Concurrent appends to
// the same category resolve last-write-wins; the transaction keeps each
// write-plus-eviction atomic.
func (s *WeaknessStore) Append(sig WeaknessSignature) error {
	if sig.LastSeen.IsZero() {
		sig.LastSeen = time.Now()
	}
	payload, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(weaknessKey(sig.Category), payload); err != nil {
			return err
		}
		return s.evictOverflow(txn, sig.Category)
	})
	if err != nil {
		return err
	}
	s.log.Debug().
		Str("category", sig.Category).
		Int("occurrences", sig.Occurrences).
		Float64("confidence", sig.Confidence).
		Msg("weakness signature stored")
	return nil
}

// evictOverflow drops the oldest-seen signatures until the ring fits.
// The just-written category is never the victim.
func (s *WeaknessStore) evictOverflow(txn *badger.Txn, keep string) error {
	type entry struct {
		key      []byte
		lastSeen time.Time
	}
	var entries []entry
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	prefix := []byte(weaknessKeyPrefix)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		var sig WeaknessSignature
		err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &sig)
		})
		if err != nil {
			return err
		}
		entries = append(entries, entry{key: item.KeyCopy(nil), lastSeen: sig.LastSeen})
	}
	if len(entries) <= s.cap {
		return nil
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].lastSeen.Before(entries[j].lastSeen)
	})
	keepKey := string(weaknessKey(keep))
	excess := len(entries) - s.cap
	for _, e := range entries {
		if excess == 0 {
			break
		}
		if string(e.key) == keepKey {
			continue
		}
		if err := txn.Delete(e.key); err != nil {
			return err
		}
		excess--
	}
	return nil
}

// Read returns up to limit signatures ranked by teaching priority.
// limit <= 0 returns everything.
func (s *WeaknessStore) Read(limit int) ([]WeaknessSignature, error) {
	var signatures []WeaknessSignature
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(weaknessKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var sig WeaknessSignature
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &sig)
			})
			if err != nil {
				return err
			}
			signatures = append(signatures, sig)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	now := time.Now()
	config := GetConfig()
	for i := range signatures {
		signatures[i].Priority = TeachingPriority(signatures[i], now, config)
	}
	sort.SliceStable(signatures, func(i, j int) bool {
		return signatures[i].Priority > signatures[j].Priority
	})
	if limit > 0 && len(signatures) > limit {
		signatures = signatures[:limit]
	}
	return signatures, nil
}

// Count reports how many signatures the ring currently holds.
func (s *WeaknessStore) Count() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(weaknessKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}
