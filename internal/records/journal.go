package records

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	goeen_log "github.com/eencloud/goeen/log"
)

// Journal is the flat-file companion to the badger store: an append-only
// JSONL trail of attempts that survives database resets and can be shipped
// off-box with plain tooling. Files roll hourly and rotate by size.
type Journal struct {
	logDir    string
	maxSizeMB int64
	mutex     sync.Mutex
	logger    *goeen_log.Logger
}

func NewJournal(logDir string, maxSizeMB int64, logger *goeen_log.Logger) *Journal {
	_ = os.MkdirAll(logDir, 0o755)
	return &Journal{
		logDir:    logDir,
		maxSizeMB: maxSizeMB,
		logger:    logger,
	}
}

// Append writes one attempt as a JSON line.
func (j *Journal) Append(a Attempt) error {
	j.mutex.Lock()
	defer j.mutex.Unlock()

	entryBytes, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}
	entryBytes = append(entryBytes, '\n')

	filename := j.getCurrentLogFile()
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err = file.Write(entryBytes); err != nil {
		return fmt.Errorf("failed to write journal entry: %w", err)
	}

	if err := j.checkRotation(filename); err != nil {
		j.logger.Warningf("Journal rotation error: %v", err)
	}

	return nil
}

func (j *Journal) getCurrentLogFile() string {
	return filepath.Join(j.logDir, fmt.Sprintf("attempts_%s.jsonl", time.Now().Format("20060102_15")))
}

func (j *Journal) checkRotation(filename string) error {
	stat, err := os.Stat(filename)
	if err != nil {
		return err
	}

	sizeMB := stat.Size() / (1024 * 1024)
	if sizeMB >= j.maxSizeMB {
		return j.rotateLog(filename)
	}

	return nil
}

func (j *Journal) rotateLog(filename string) error {
	timestamp := time.Now().Format("20060102_150405")
	rotatedFile := fmt.Sprintf("%s.rotated_%s", filename, timestamp)

	if err := os.Rename(filename, rotatedFile); err != nil {
		return fmt.Errorf("failed to rotate journal file: %w", err)
	}

	j.logger.Infof("Rotated attempt journal: %s -> %s", filename, rotatedFile)
	return nil
}

// Stats reports the current journal file and its fill level for metrics.
func (j *Journal) Stats() map[string]interface{} {
	j.mutex.Lock()
	defer j.mutex.Unlock()

	currentFile := j.getCurrentLogFile()
	var currentSize int64
	if stat, err := os.Stat(currentFile); err == nil {
		currentSize = stat.Size()
	}

	return map[string]interface{}{
		"current_file":    currentFile,
		"current_size_mb": currentSize / (1024 * 1024),
		"max_size_mb":     j.maxSizeMB,
		"rotation_needed": currentSize >= (j.maxSizeMB * 1024 * 1024),
	}
}
