package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmylchreest/niriurgent/internal/model"
)

// SchemaVersion is the current attribution log schema version.
const SchemaVersion = 1

// Persistence stores attribution records.
type Persistence interface {
	// Load reads all records from storage.
	Load() ([]model.AttributionRecord, error)

	// Append adds a record to storage.
	Append(r model.AttributionRecord) error

	// Rewrite replaces the entire storage file (used after compaction).
	Rewrite(rs []model.AttributionRecord) error

	// Clear removes all stored records.
	Clear() error

	// Close releases file handles and resources.
	Close() error
}

// schemaHeader is the first line of the JSONL file.
type schemaHeader struct {
	SchemaVersion int   `json:"niriurgent_schema_version"`
	CreatedAt     int64 `json:"created_at"`
}

// ErrPersistenceClosed is returned when operations are attempted on a closed persistence.
var ErrPersistenceClosed = errors.New("persistence is closed")

const maxLineSize = 1024 * 1024

// JSONLPersistence implements Persistence using a JSONL file.
type JSONLPersistence struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	closed bool
}

// NewJSONLPersistence opens or creates the log at path.
func NewJSONLPersistence(path string) (*JSONLPersistence, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}

	p := &JSONLPersistence{
		path: path,
		file: file,
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	if info.Size() == 0 {
		if err := p.writeHeader(); err != nil {
			file.Close()
			return nil, err
		}
	}

	return p, nil
}

// Path returns the log file path.
func (p *JSONLPersistence) Path() string {
	return p.path
}

func (p *JSONLPersistence) writeHeader() error {
	data, err := json.Marshal(schemaHeader{
		SchemaVersion: SchemaVersion,
		CreatedAt:     time.Now().Unix(),
	})
	if err != nil {
		return err
	}

	_, err = p.file.Write(append(data, '\n'))
	return err
}

func (p *JSONLPersistence) writeRecord(r model.AttributionRecord) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = p.file.Write(append(data, '\n'))
	return err
}

// Load reads all records from storage. Malformed lines are skipped.
func (p *JSONLPersistence) Load() ([]model.AttributionRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.file == nil {
		return nil, ErrPersistenceClosed
	}

	if _, err := p.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek %s: %w", p.path, err)
	}

	records, err := readRecords(p.file)
	if err != nil {
		return records, fmt.Errorf("error reading file: %w", err)
	}

	if _, err := p.file.Seek(0, io.SeekEnd); err != nil {
		return records, err
	}

	return records, nil
}

// readRecords parses a log stream. The header line is checked for a
// supported schema version.
func readRecords(r io.Reader) ([]model.AttributionRecord, error) {
	var records []model.AttributionRecord
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var header schemaHeader
		if json.Unmarshal(line, &header) == nil && header.SchemaVersion > 0 {
			if header.SchemaVersion > SchemaVersion {
				return nil, fmt.Errorf("unsupported schema version %d (max: %d)",
					header.SchemaVersion, SchemaVersion)
			}
			continue
		}

		var rec model.AttributionRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		if rec.Validate() == nil {
			records = append(records, rec)
		}
	}

	return records, scanner.Err()
}

// Append adds a record to storage.
func (p *JSONLPersistence) Append(r model.AttributionRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.file == nil {
		return ErrPersistenceClosed
	}

	if err := p.writeRecord(r); err != nil {
		return err
	}
	return p.file.Sync()
}

// Rewrite replaces the entire storage file.
func (p *JSONLPersistence) Rewrite(rs []model.AttributionRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPersistenceClosed
	}

	return p.replace(rs)
}

// Clear removes all stored records.
func (p *JSONLPersistence) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPersistenceClosed
	}

	return p.replace(nil)
}

// replace swaps the file for one holding only rs, keeping a backup until
// the new file is synced.
func (p *JSONLPersistence) replace(rs []model.AttributionRecord) error {
	if p.file != nil {
		if err := p.file.Close(); err != nil {
			return err
		}
		p.file = nil
	}

	backupPath := p.path + ".bak"
	if err := os.Rename(p.path, backupPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	file, err := os.OpenFile(p.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND, 0600)
	if err != nil {
		_ = os.Rename(backupPath, p.path)
		return fmt.Errorf("failed to create new file: %w", err)
	}
	p.file = file

	if err := p.writeHeader(); err != nil {
		return err
	}
	for _, r := range rs {
		if err := p.writeRecord(r); err != nil {
			return err
		}
	}
	if err := p.file.Sync(); err != nil {
		return err
	}

	_ = os.Remove(backupPath)
	return nil
}

// Close releases file handles and resources.
func (p *JSONLPersistence) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.file != nil {
		err := p.file.Close()
		p.file = nil
		return err
	}
	return nil
}

// ReadLog reads records from path without opening it for writing.
// A missing file yields no records.
func ReadLog(path string) ([]model.AttributionRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	return readRecords(f)
}

// RecoverFromCorruption moves a damaged log aside and rewrites only its
// valid records.
func RecoverFromCorruption(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	valid, _ := readRecords(f)
	f.Close()

	backupPath := path + ".corrupted." + time.Now().Format("20060102-150405")
	if err := os.Rename(path, backupPath); err != nil {
		return fmt.Errorf("failed to backup corrupted file: %w", err)
	}

	p, err := NewJSONLPersistence(path)
	if err != nil {
		return err
	}
	defer p.Close()

	return p.Rewrite(valid)
}
