// ABOUTME: BadgerDB key-value backend for health observations.
// ABOUTME: Keys are ordered by metric then date, so prefix scans come back date-sorted.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/harperreed/healthdash/internal/models"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

const (
	sep            = "\x00"
	prefixObs      = "obs" + sep
	prefixCustom   = "custom" + sep
	prefixManual   = "manual" + sep
	prefixImport   = "import" + sep
	maxTxnRetries  = 5
	badgerDirPerms = 0750
)

// BadgerStore implements Repository on an embedded BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

var _ Repository = (*BadgerStore)(nil)

// BadgerConfig holds BadgerDB configuration.
type BadgerConfig struct {
	// Path to store database files
	Path string

	// InMemory mode (for testing)
	InMemory bool
}

// OpenBadger opens or creates a Badger store.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else if err := os.MkdirAll(cfg.Path, badgerDirPerms); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	opts = opts.
		WithNumVersionsToKeep(1).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

type storedValue struct {
	Value *float64 `json:"value"`
}

func obsMetricPrefix(m models.Metric) []byte {
	return []byte(prefixObs + m.Key() + sep)
}

func obsKey(o models.Observation) []byte {
	return []byte(prefixObs + o.Metric.Key() + sep + o.Date.String() + sep + o.SubjectID)
}

// splitObsKey returns the date and subject parts of an observation key.
func splitObsKey(key []byte) (date, subject string, ok bool) {
	parts := strings.SplitN(string(key), sep, 4)
	if len(parts) != 4 {
		return "", "", false
	}
	return parts[2], parts[3], true
}

// errChunkFull aborts a transaction that outgrew Badger's batch limits so the
// chunk can be replayed at the size that fit.
var errChunkFull = errors.New("badger transaction full")

// Upsert writes the batch in one transaction, splitting it only when Badger
// reports the transaction too big. If a later chunk fails, the keys written by
// earlier chunks are deleted again, so a failed call persists nothing.
// Conflicting concurrent writers are retried per chunk, which keeps the
// existence check and the write atomic per key.
func (s *BadgerStore) Upsert(ctx context.Context, obs []models.Observation) (UpsertResult, error) {
	var res UpsertResult
	if err := validateAll(obs); err != nil {
		return res, err
	}

	var written [][]byte
	for start := 0; start < len(obs); {
		chunk, err := s.upsertChunk(ctx, obs[start:])
		if err != nil {
			err = fmt.Errorf("upsert: %w", err)
			if len(written) > 0 {
				log.WithField("keys", len(written)).Warn("upsert failed, removing rows from earlier chunks")
				err = multierr.Append(err, s.deleteKeys(written))
			}
			return UpsertResult{}, err
		}
		written = append(written, chunk.written...)
		res.Inserted += chunk.inserted
		res.Skipped += chunk.skipped
		start += chunk.size
	}
	return res, nil
}

// chunkResult is the outcome of one committed transaction.
type chunkResult struct {
	size     int
	inserted int
	skipped  int
	written  [][]byte
}

// upsertChunk commits the longest leading run of obs that fits in one
// transaction.
func (s *BadgerStore) upsertChunk(ctx context.Context, obs []models.Observation) (chunkResult, error) {
	limit := len(obs)
	for attempt := 0; ; {
		cr := chunkResult{}
		err := s.db.Update(func(txn *badger.Txn) error {
			for i, o := range obs[:limit] {
				if err := ctx.Err(); err != nil {
					return err
				}
				keys, err := putIfAbsent(txn, o)
				if errors.Is(err, badger.ErrTxnTooBig) && i > 0 {
					limit = i
					return errChunkFull
				}
				if err != nil {
					return fmt.Errorf("%s %s: %w", o.Metric, o.Date, err)
				}
				if len(keys) > 0 {
					cr.inserted++
				} else {
					cr.skipped++
				}
				cr.written = append(cr.written, keys...)
			}
			cr.size = limit
			return nil
		})
		switch {
		case errors.Is(err, errChunkFull):
			log.WithField("records", limit).Debug("badger transaction full, splitting batch")
			continue
		case errors.Is(err, badger.ErrConflict) && attempt < maxTxnRetries:
			attempt++
			log.WithField("attempt", attempt).Debug("badger upsert conflict, retrying")
			continue
		case err != nil:
			return chunkResult{}, err
		}
		return cr, nil
	}
}

// putIfAbsent stages o unless its key exists, reading the transaction's own
// pending writes. It returns the keys it staged, empty when o was skipped.
func putIfAbsent(txn *badger.Txn, o models.Observation) ([][]byte, error) {
	key := obsKey(o)
	_, err := txn.Get(key)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		return nil, err
	}

	val, err := json.Marshal(storedValue{Value: o.Value})
	if err != nil {
		return nil, fmt.Errorf("encode observation: %w", err)
	}
	if err := txn.Set(key, val); err != nil {
		return nil, err
	}
	keys := [][]byte{key}

	if o.Metric.Kind == models.KindCustom {
		reg := []byte(prefixCustom + o.Metric.Name)
		_, err := txn.Get(reg)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			if err := txn.Set(reg, nil); err != nil {
				return nil, err
			}
			keys = append(keys, reg)
		case err != nil:
			return nil, err
		}
	}
	return keys, nil
}

// deleteKeys removes keys in one write batch.
func (s *BadgerStore) deleteKeys(keys [][]byte) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return fmt.Errorf("delete key: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush delete: %w", err)
	}
	return nil
}

// List returns a metric's observations ordered by date ascending.
func (s *BadgerStore) List(ctx context.Context, subject string, metric models.Metric, r models.DateRange) ([]models.Observation, error) {
	if err := metric.Validate(); err != nil {
		return nil, err
	}

	out := []models.Observation{}
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := obsMetricPrefix(metric)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			date, subj, ok := splitObsKey(item.Key())
			if !ok || (subject != "" && subj != subject) {
				continue
			}
			day, err := models.ParseDate(date)
			if err != nil {
				return err
			}
			if !r.Contains(day) {
				continue
			}

			var sv storedValue
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &sv)
			}); err != nil {
				return fmt.Errorf("decode observation: %w", err)
			}
			out = append(out, models.Observation{SubjectID: subj, Date: day, Metric: metric, Value: sv.Value})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", metric, err)
	}
	return out, nil
}

// Delete removes observations for a subject and metric; empty subject or nil
// metric widen the match.
func (s *BadgerStore) Delete(ctx context.Context, subject string, metric *models.Metric) (int, error) {
	prefix := []byte(prefixObs)
	if metric != nil {
		if err := metric.Validate(); err != nil {
			return 0, err
		}
		prefix = obsMetricPrefix(*metric)
	}

	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := it.Item().KeyCopy(nil)
			if subject != "" {
				if _, subj, ok := splitObsKey(key); !ok || subj != subject {
					continue
				}
			}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan for delete: %w", err)
	}

	if err := s.deleteKeys(keys); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// DropAll removes every observation and custom metric registration.
func (s *BadgerStore) DropAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.DropPrefix([]byte(prefixObs), []byte(prefixCustom)); err != nil {
		return fmt.Errorf("drop observations: %w", err)
	}
	return nil
}

// Metrics returns built-in metrics followed by registered custom metrics.
func (s *BadgerStore) Metrics(ctx context.Context) ([]models.Metric, error) {
	out := make([]models.Metric, 0, len(models.BuiltinKinds))
	for _, k := range models.BuiltinKinds {
		out = append(out, models.Metric{Kind: k})
	}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixCustom)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			name := string(bytes.TrimPrefix(it.Item().Key(), prefix))
			out = append(out, models.Metric{Kind: models.KindCustom, Name: name})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list custom metrics: %w", err)
	}
	return out, nil
}

// Subjects returns every subject with at least one observation, sorted.
func (s *BadgerStore) Subjects(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixObs)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, subj, ok := splitObsKey(it.Item().Key()); ok {
				seen[subj] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}

	subjects := make([]string, 0, len(seen))
	for subj := range seen {
		subjects = append(subjects, subj)
	}
	sort.Strings(subjects)
	return subjects, nil
}

// timeKey builds a key that sorts by creation time.
func timeKey(prefix string, t time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d%s%s", prefix, t.UnixNano(), sep, id))
}

// AddManual stores a hand-entered value.
func (s *BadgerStore) AddManual(ctx context.Context, e *models.ManualEntry) error {
	if e.Metric == "" {
		return &models.ValidationError{Field: "metric", Message: "metric is required"}
	}
	if e.Date.IsZero() {
		return &models.ValidationError{Field: "date", Message: "date is required"}
	}
	val, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode manual entry: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(timeKey(prefixManual, e.CreatedAt, e.ID.String()), val)
	})
}

// ListManual returns manual entries in insertion order.
func (s *BadgerStore) ListManual(ctx context.Context, limit int) ([]*models.ManualEntry, error) {
	entries := []*models.ManualEntry{}
	err := s.scanJSON(ctx, prefixManual, false, limit, func(val []byte) error {
		var e models.ManualEntry
		if err := json.Unmarshal(val, &e); err != nil {
			return err
		}
		entries = append(entries, &e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list manual entries: %w", err)
	}
	return entries, nil
}

// RemoveLastManual deletes and returns the most recent manual entry.
func (s *BadgerStore) RemoveLastManual(ctx context.Context) (*models.ManualEntry, error) {
	var removed *models.ManualEntry
	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixManual)
		// Reverse iteration seeks to the largest key <= seek.
		seek := append([]byte(prefixManual), 0xFF)
		it.Seek(seek)
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		item := it.Item()
		key := item.KeyCopy(nil)
		var e models.ManualEntry
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		}); err != nil {
			return err
		}
		removed = &e
		return txn.Delete(key)
	})
	if err != nil {
		return nil, fmt.Errorf("remove manual entry: %w", err)
	}
	if removed == nil {
		return nil, &models.NotFoundError{What: "manual entry"}
	}
	return removed, nil
}

// RecordImport appends an entry to the import log.
func (s *BadgerStore) RecordImport(ctx context.Context, rec *models.ImportRecord) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode import: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(timeKey(prefixImport, rec.CreatedAt, rec.ID.String()), val)
	})
}

// ListImports returns import records, newest first.
func (s *BadgerStore) ListImports(ctx context.Context, limit int) ([]*models.ImportRecord, error) {
	records := []*models.ImportRecord{}
	err := s.scanJSON(ctx, prefixImport, true, limit, func(val []byte) error {
		var r models.ImportRecord
		if err := json.Unmarshal(val, &r); err != nil {
			return err
		}
		records = append(records, &r)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	return records, nil
}

func (s *BadgerStore) scanJSON(ctx context.Context, prefix string, reverse bool, limit int, fn func([]byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = reverse
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		seek := p
		if reverse {
			seek = append([]byte(prefix), 0xFF)
		}
		n := 0
		for it.Seek(seek); it.ValidForPrefix(p); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if limit > 0 && n >= limit {
				break
			}
			if err := it.Item().Value(fn); err != nil {
				return err
			}
			n++
		}
		return nil
	})
}
