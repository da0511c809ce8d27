package crash

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kerlexov/bugreport-go-sdk/pkg/errs"
)

const (
	recordFileName      = "pending_crash.json"
	crashOutputFileName = "crash_output.log"
)

// Record is the one crash kept on disk until it has been submitted.
type Record struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	CrashType     string    `json:"crashType"`
	Details       string    `json:"details"`
	AppVersion    string    `json:"appVersion"`
	BuildNumber   string    `json:"buildNumber"`
	DeviceModel   string    `json:"deviceModel"`
	SystemVersion string    `json:"systemVersion"`
}

// RecordStore is a single-slot file store: saving overwrites the previous
// record and the file is removed only by Delete.
type RecordStore struct {
	dir   string
	mutex sync.Mutex
}

func NewRecordStore(dir string) *RecordStore {
	if dir == "" {
		dir = DefaultDir()
	}
	return &RecordStore{
		dir: dir,
	}
}

// DefaultDir is the per-user cache directory used when none is configured.
func DefaultDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "bugreport")
}

func (s *RecordStore) Dir() string {
	return s.dir
}

func (s *RecordStore) Path() string {
	return filepath.Join(s.dir, recordFileName)
}

// CrashOutputPath is where the Go runtime writes fatal error output.
func (s *RecordStore) CrashOutputPath() string {
	return filepath.Join(s.dir, crashOutputFileName)
}

// Save writes rec atomically: readers see either the old record or the new
// one, never a partial file.
func (s *RecordStore) Save(rec Record) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create crash directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errs.SerializationError("failed to marshal crash record", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".pending_crash-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary crash file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write crash record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync crash record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close crash record: %w", err)
	}

	if err := os.Rename(tmpName, s.Path()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move crash record into place: %w", err)
	}
	return nil
}

// Load returns the pending record, or nil when there is none.
func (s *RecordStore) Load() (*Record, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := os.ReadFile(s.Path())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read crash record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errs.SerializationError("failed to unmarshal crash record", err)
	}
	return &rec, nil
}

func (s *RecordStore) Delete() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := os.Remove(s.Path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove crash record: %w", err)
	}
	return nil
}

func (s *RecordStore) Exists() bool {
	_, err := os.Stat(s.Path())
	return err == nil
}

// readCrashOutput returns what the previous process's runtime wrote to the
// crash output file, along with the file's modification time.
func (s *RecordStore) readCrashOutput() ([]byte, time.Time, error) {
	path := s.CrashOutputPath()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	return data, info.ModTime(), nil
}
