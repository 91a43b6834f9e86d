// Persistent storage using BadgerDB.
package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/models"
)

// Compile-time check that BadgerStore implements the full Store interface.
var _ Store = (*BadgerStore)(nil)

// Key prefixes for the different record types.
const (
	prefixJobs   = "jobs/"
	prefixEvents = "events/"
)

// BadgerStore provides persistent storage using BadgerDB.
type BadgerStore struct {
	db     *badger.DB
	stopCh chan struct{}
}

// NewBadgerStore opens (or creates) a BadgerDB store under dataDir.
func NewBadgerStore(dataDir string) (*BadgerStore, error) {
	dbPath := filepath.Join(dataDir, "engine.db")

	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil
	opts.SyncWrites = true
	opts.ValueLogFileSize = 64 << 20 // 64MB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &BadgerStore{
		db:     db,
		stopCh: make(chan struct{}),
	}

	go s.runGC()

	return s, nil
}

// Close closes the database and stops background goroutines.
func (s *BadgerStore) Close() error {
	close(s.stopCh)
	return s.db.Close()
}

// runGC runs periodic value-log garbage collection.
func (s *BadgerStore) runGC() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			for {
				err := s.db.RunValueLogGC(0.5)
				if err == badger.ErrNoRewrite {
					break
				}
				if err != nil {
					break
				}
			}
		}
	}
}

func jobKey(id string) []byte {
	return []byte(prefixJobs + id)
}

// eventKey orders events per job by occurrence time, with the event ID as a
// uniqueness suffix for same-nanosecond writes.
func eventKey(event *models.CostEvent) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d/%s", prefixEvents, event.JobID, event.OccurredAt.UnixNano(), event.ID))
}

func eventPrefix(jobID string) []byte {
	return []byte(prefixEvents + jobID + "/")
}

// CreateJob stores a new job record.
func (s *BadgerStore) CreateJob(job *models.JobRecord) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := jobKey(job.ID)

		_, err := txn.Get(key)
		if err == nil {
			return models.ErrJobAlreadyExists
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		data, err := json.Marshal(job)
		if err != nil {
			return err
		}

		return txn.Set(key, data)
	})
}

// UpdateJob updates an existing job record.
func (s *BadgerStore) UpdateJob(job *models.JobRecord) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := jobKey(job.ID)

		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return models.ErrJobNotFound
		}
		if err != nil {
			return err
		}

		data, err := json.Marshal(job)
		if err != nil {
			return err
		}

		return txn.Set(key, data)
	})
}

// GetJob retrieves a job record by ID.
func (s *BadgerStore) GetJob(id string) (*models.JobRecord, error) {
	var job models.JobRecord

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(jobKey(id))
		if err == badger.ErrKeyNotFound {
			return models.ErrJobNotFound
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &job)
		})
	})
	if err != nil {
		return nil, err
	}

	return &job, nil
}

// DeleteJob deletes a job record by ID.
func (s *BadgerStore) DeleteJob(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := jobKey(id)

		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return models.ErrJobNotFound
		}
		if err != nil {
			return err
		}

		return txn.Delete(key)
	})
}

// ListJobs returns all job records.
func (s *BadgerStore) ListJobs() ([]*models.JobRecord, error) {
	var jobs []*models.JobRecord

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixJobs)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var job models.JobRecord
				if err := json.Unmarshal(val, &job); err != nil {
					return err
				}
				jobs = append(jobs, &job)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	return jobs, nil
}

// ListJobsByStatus returns all job records in the given status.
func (s *BadgerStore) ListJobsByStatus(status models.JobStatus) ([]*models.JobRecord, error) {
	all, err := s.ListJobs()
	if err != nil {
		return nil, err
	}

	var jobs []*models.JobRecord
	for _, job := range all {
		if job.Status == status {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

// AppendEvent stores a cost event.
func (s *BadgerStore) AppendEvent(event *models.CostEvent) error {
	return s.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		return txn.Set(eventKey(event), data)
	})
}

// ListEvents returns all cost events for a job, oldest first.
func (s *BadgerStore) ListEvents(jobID string) ([]*models.CostEvent, error) {
	var events []*models.CostEvent

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = eventPrefix(jobID)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var event models.CostEvent
				if err := json.Unmarshal(val, &event); err != nil {
					return err
				}
				events = append(events, &event)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return events, nil
}

// SumCostByJob returns the sum of TotalCost over all events for a job.
func (s *BadgerStore) SumCostByJob(jobID string) (float64, error) {
	events, err := s.ListEvents(jobID)
	if err != nil {
		return 0, err
	}

	var sum float64
	for _, event := range events {
		sum += event.TotalCost
	}
	return sum, nil
}

// DeleteEventsByJob removes all cost events for a job.
func (s *BadgerStore) DeleteEventsByJob(jobID string) error {
	// Collect keys first; Badger iterators cannot span a delete in the
	// same transaction safely for large sets.
	var keys [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = eventPrefix(jobID)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return err
		}
	}
	return wb.Flush()
}
