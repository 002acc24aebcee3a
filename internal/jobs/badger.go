package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const badgerPrefix = "job:"

// BadgerStore persists jobs in an embedded badger database.
// key = "job:<id>" (JSON)
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) the database in dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func (s *BadgerStore) Create(_ context.Context, j Job) error {
	if err := validateNew(j); err != nil {
		return err
	}
	key := []byte(badgerPrefix + j.ID)
	buf, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("job %s already exists", j.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, buf)
	})
}

func (s *BadgerStore) Get(_ context.Context, id string) (Job, error) {
	var out Job
	err := s.db.View(func(txn *badger.Txn) error {
		return readJob(txn, id, &out)
	})
	if err != nil {
		return Job{}, err
	}
	return out, nil
}

// Update retries on transaction conflicts with concurrent writers.
func (s *BadgerStore) Update(_ context.Context, id string, fn func(*Job) error) (Job, error) {
	for i := 0; i < maxTxRetries; i++ {
		out, err := s.update(id, fn)
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return out, err
	}
	return Job{}, fmt.Errorf("update job %s: %w", id, badger.ErrConflict)
}

func (s *BadgerStore) update(id string, fn func(*Job) error) (Job, error) {
	var out Job
	err := s.db.Update(func(txn *badger.Txn) error {
		var cur Job
		if err := readJob(txn, id, &cur); err != nil {
			return err
		}
		next, err := applyUpdate(cur, fn)
		if err != nil {
			return err
		}
		buf, err := json.Marshal(next)
		if err != nil {
			return err
		}
		out = next
		return txn.Set([]byte(badgerPrefix+id), buf)
	})
	if err != nil {
		return Job{}, err
	}
	return out, nil
}

func (s *BadgerStore) List(ctx context.Context) ([]Job, error) {
	var list []Job
	prefix := []byte(badgerPrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var j Job
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &j)
			}); err != nil {
				return err
			}
			list = append(list, j)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortJobs(list)
	return list, nil
}

func readJob(txn *badger.Txn, id string, out *Job) error {
	item, err := txn.Get([]byte(badgerPrefix + id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}
