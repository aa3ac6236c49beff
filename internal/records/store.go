// Package records keeps a durable trail of payment-attempt outcomes. The
// session works fine without it; when wired, every terminal outcome
// (completed, failed, cancelled, timed out) is written here so support can
// answer "what happened to that charge" after the UI is long gone.
package records

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	goeen_log "github.com/eencloud/goeen/log"
)

// Single TTL constant for all attempts (business rule)
const attemptTTL = 72 * time.Hour

// Attempt is one payment attempt's terminal outcome.
type Attempt struct {
	ID        string    `json:"id"`
	ReaderID  string    `json:"reader_id"`
	IntentID  string    `json:"intent_id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Outcome   string    `json:"outcome"` // completed | failed | cancelled | timed_out
	ErrorCode string    `json:"error_code,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store manages durable storage of payment attempts.
type Store struct {
	db      *badger.DB
	maxSize int64
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *goeen_log.Logger
	journal *Journal // optional flat-file trail
}

func NewStore(dir string, maxSizeGB int, logger *goeen_log.Logger) (*Store, error) {
	maxSize := int64(maxSizeGB) * 1024 * 1024 * 1024

	// Check for stale lock file and attempt cleanup
	if err := cleanupStaleLock(dir, logger); err != nil {
		logger.Warningf("Failed to cleanup potential stale lock: %v", err)
	}

	opts := badger.DefaultOptions(dir).
		WithValueLogFileSize(1 << 20). // 1MB value log files
		WithMemTableSize(32 << 20).    // 32MB mem tables
		WithNumMemtables(3).
		WithNumCompactors(4).
		WithSyncWrites(false). // Async for performance
		WithBlockCacheSize(64 << 20).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	store := &Store{
		db:      db,
		maxSize: maxSize,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}

	go store.maintenanceWorker()

	return store, nil
}

// AttachJournal enables the flat-file trail alongside the database.
func (s *Store) AttachJournal(j *Journal) {
	s.journal = j
}

// Journal returns the attached journal, or nil when none is configured.
func (s *Store) Journal() *Journal {
	return s.journal
}

// Record persists one attempt. Keys are reader-prefixed for fast per-reader
// iteration: "attempt_<readerID>_<timestamp>_<id>".
func (s *Store) Record(a Attempt) error {
	readerID := a.ReaderID
	if readerID == "" {
		readerID = "unassigned"
	}
	key := fmt.Sprintf("attempt_%s_%d_%s", readerID, a.CreatedAt.UnixNano(), a.ID)

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal attempt: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store attempt: %w", err)
	}

	if s.journal != nil {
		if err := s.journal.Append(a); err != nil {
			s.logger.Warningf("Journal append failed for attempt %s: %v", a.ID, err)
		}
	}

	s.logger.Debugf("Stored payment attempt %s (%s)", a.ID, a.Outcome)
	return nil
}

// Recent returns up to limit attempts across all readers, oldest first.
func (s *Store) Recent(limit int) ([]Attempt, error) {
	return s.scan([]byte("attempt_"), limit)
}

// RecentForReader returns up to limit attempts for one reader, oldest first.
func (s *Store) RecentForReader(readerID string, limit int) ([]Attempt, error) {
	return s.scan([]byte(fmt.Sprintf("attempt_%s_", readerID)), limit)
}

func (s *Store) scan(prefix []byte, limit int) ([]Attempt, error) {
	var attempts []Attempt

	err := s.db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		itOpts.PrefetchValues = false // Key-only scan for performance
		it := txn.NewIterator(itOpts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(attempts) < limit; it.Next() {
			item := it.Item()
			var data []byte
			err := item.Value(func(val []byte) error {
				data = append([]byte{}, val...)
				return nil
			})
			if err != nil {
				return err
			}

			var a Attempt
			if err := json.Unmarshal(data, &a); err != nil {
				continue
			}
			attempts = append(attempts, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return attempts, nil
}

// Stats reports the approximate record count and on-disk size for metrics.
func (s *Store) Stats() (int64, int64) {
	keys, size := s.db.EstimateSize([]byte("attempt_"))
	return int64(keys), int64(size)
}

func (s *Store) maintenanceWorker() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runMaintenance()
		}
	}
}

func (s *Store) runMaintenance() {
	s.cleanupByAge()
	s.cleanupBySize()

	if err := s.db.RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
		s.logger.Errorf("Attempt store value log GC failed: %v", err)
	}
}

func (s *Store) cleanupByAge() {
	now := time.Now()
	var keysToDelete [][]byte

	// Scan for old attempts (key-only for speed)
	if err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte("attempt_")); it.ValidForPrefix([]byte("attempt_")); it.Next() {
			var a Attempt
			if it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &a) }) == nil {
				if now.Sub(a.CreatedAt) > attemptTTL {
					keysToDelete = append(keysToDelete, it.Item().KeyCopy(nil))
				}
			}
		}
		return nil
	}); err != nil {
		s.logger.Errorf("Age cleanup scan failed: %v", err)
		return
	}

	if len(keysToDelete) > 0 {
		if err := s.db.Update(func(txn *badger.Txn) error {
			for _, key := range keysToDelete {
				if err := txn.Delete(key); err != nil {
					s.logger.Errorf("Failed to delete key: %v", err)
				}
			}
			return nil
		}); err != nil {
			s.logger.Errorf("Age cleanup delete failed: %v", err)
		} else {
			s.logger.Infof("Cleaned up %d attempts older than %v", len(keysToDelete), attemptTTL)
		}
	}
}

func (s *Store) cleanupBySize() {
	currentSize := s.getApproximateSize()

	if currentSize > s.maxSize*70/100 && currentSize < s.maxSize*80/100 {
		s.logger.Warningf("Attempt store at 70%% capacity (%d MB / %d MB)", currentSize/1024/1024, s.maxSize/1024/1024)
	}

	if currentSize < s.maxSize*80/100 {
		return // Not full enough
	}

	s.logger.Errorf("Attempt store at 80%% capacity - starting cleanup (%d MB / %d MB)", currentSize/1024/1024, s.maxSize/1024/1024)
	targetSize := s.maxSize * 60 / 100
	var keysToDelete [][]byte

	// Oldest attempts sort first under the timestamped key scheme
	if err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte("attempt_")); it.ValidForPrefix([]byte("attempt_")); it.Next() {
			if s.getApproximateSize() <= targetSize {
				break
			}
			keysToDelete = append(keysToDelete, it.Item().KeyCopy(nil))
		}
		return nil
	}); err != nil {
		s.logger.Errorf("Size cleanup scan failed: %v", err)
		return
	}

	if len(keysToDelete) > 0 {
		if err := s.db.Update(func(txn *badger.Txn) error {
			for _, key := range keysToDelete {
				if err := txn.Delete(key); err != nil {
					s.logger.Errorf("Failed to delete key: %v", err)
				}
			}
			return nil
		}); err != nil {
			s.logger.Errorf("Size cleanup delete failed: %v", err)
		} else {
			s.logger.Infof("Size cleanup: deleted %d oldest attempts", len(keysToDelete))
		}
	}
}

func (s *Store) getApproximateSize() int64 {
	lsm, vlog := s.db.Size()
	return lsm + vlog
}

func (s *Store) Close() error {
	s.cancel()
	return s.db.Close()
}

// cleanupStaleLock attempts to remove stale BadgerDB lock files left behind
// by an ungraceful shutdown. Safe because orchestration guarantees a single
// instance per data directory; a genuinely held lock still fails Open().
func cleanupStaleLock(dir string, logger *goeen_log.Logger) error {
	lockFile := filepath.Join(dir, "LOCK")

	if _, err := os.Stat(lockFile); os.IsNotExist(err) {
		return nil // No lock file, nothing to clean
	}

	logger.Infof("Found potential stale lock file, attempting cleanup: %s", lockFile)

	if err := os.Remove(lockFile); err != nil {
		return fmt.Errorf("failed to remove stale lock file: %w", err)
	}

	logger.Infof("Successfully removed stale lock file: %s", lockFile)
	return nil
}
