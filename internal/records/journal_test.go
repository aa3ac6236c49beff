package records

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/eencloud/goeen/log"
)

func journalLogger() *log.Logger {
	customFormat := "{{eenTimeStamp .Now}}[{{.Level}}]: {{.Message}}"
	return log.NewContext(os.Stderr, customFormat, log.LevelError).GetLogger("test", log.LevelError)
}

func TestJournalAppend(t *testing.T) {
	dir := t.TempDir()
	journal := NewJournal(dir, 1, journalLogger())

	attempts := []Attempt{
		{ID: "a1", ReaderID: "r1", Outcome: "completed", Amount: 2000, CreatedAt: time.Now()},
		{ID: "a2", ReaderID: "r1", Outcome: "timed_out", ErrorCode: "OPERATION_TIMEOUT", CreatedAt: time.Now()},
	}
	for _, a := range attempts {
		if err := journal.Append(a); err != nil {
			t.Fatal(err)
		}
	}

	file, err := os.Open(journal.getCurrentLogFile())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = file.Close() }()

	var lines []Attempt
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var a Attempt
		if err := json.Unmarshal(scanner.Bytes(), &a); err != nil {
			t.Fatalf("Malformed journal line: %v", err)
		}
		lines = append(lines, a)
	}
	if len(lines) != 2 {
		t.Fatalf("Expected 2 journal lines, got %d", len(lines))
	}
	if lines[0].ID != "a1" || lines[1].ID != "a2" {
		t.Errorf("Journal order wrong: %+v", lines)
	}
	if lines[1].ErrorCode != "OPERATION_TIMEOUT" {
		t.Errorf("Error code lost in journal: %+v", lines[1])
	}
}

func TestJournalStats(t *testing.T) {
	journal := NewJournal(t.TempDir(), 8, journalLogger())
	_ = journal.Append(Attempt{ID: "a1", Outcome: "failed", CreatedAt: time.Now()})

	stats := journal.Stats()
	if stats["max_size_mb"] != int64(8) {
		t.Errorf("Unexpected max size: %v", stats["max_size_mb"])
	}
	if stats["rotation_needed"] != false {
		t.Error("Fresh journal should not need rotation")
	}
}

func TestStoreWritesJournal(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()
	store.AttachJournal(NewJournal(dir, 1, journalLogger()))

	if err := store.Record(Attempt{ID: "a1", ReaderID: "r1", Outcome: "completed", CreatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected one journal file, got %d", len(entries))
	}
}
