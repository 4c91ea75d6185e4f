package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// File names under the data directory.
const (
	AssignmentsFile = "assigned_substitute.json"
	SelectionFile   = "sms/selected_teachers.json"
	ContactsFile    = "sms/teacher_contacts.json"
	HistoryFile     = "sms/sms_history.json"
)

// FileStore keeps assignments, operator choices and the SMS history as JSON
// documents under a base directory.
type FileStore struct {
	baseDir  string
	validate *validator.Validate
	now      func() time.Time
	log      *logrus.Entry

	mu sync.Mutex // serializes read-modify-write of the history file
}

// NewFileStore ensures the base directory exists and returns a handle.
func NewFileStore(baseDir string, log *logrus.Entry) (*FileStore, error) {
	if baseDir == "" {
		baseDir = "./substitute_data"
	}
	if err := os.MkdirAll(filepath.Join(baseDir, "sms"), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &FileStore{
		baseDir:  baseDir,
		validate: validator.New(),
		now:      time.Now,
		log:      log.WithField("component", "file_store"),
	}, nil
}

func (s *FileStore) resolve(name string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(name))
}

// readFile returns nil content for a missing or blank file.
func (s *FileStore) readFile(name string) ([]byte, error) {
	data, err := os.ReadFile(s.resolve(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

func (s *FileStore) readJSON(name string, v interface{}) (bool, error) {
	data, err := s.readFile(name)
	if err != nil || data == nil {
		return false, err
	}
	if err := sonic.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", name, err)
	}
	return true, nil
}

// writeJSON replaces the file atomically through a temporary file.
func (s *FileStore) writeJSON(name string, v interface{}) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	path := s.resolve(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare directory for %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", name, err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
