package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/GitSaviour/jaaptracker/internal/constants"
	"github.com/GitSaviour/jaaptracker/internal/logger"
)

const (
	minuteLayout = "20060102-1504"
	secondLayout = "20060102-150405"
)

// Exporter writes a backup document to w.
type Exporter interface {
	Export(ctx context.Context, w io.Writer) error
}

// Info describes a backup file on disk.
type Info struct {
	Name      string
	Path      string
	Timestamp time.Time
	Size      int64
	seq       int
}

// Manager keeps timestamped backup files in one directory and rotates them.
type Manager struct {
	backupDir  string
	maxBackups int
	now        func() time.Time
}

// NewManager creates a manager for backupDir keeping at most maxBackups files.
// A non-positive maxBackups falls back to constants.MaxBackups.
func NewManager(backupDir string, maxBackups int) *Manager {
	if maxBackups <= 0 {
		maxBackups = constants.MaxBackups
	}
	return &Manager{
		backupDir:  backupDir,
		maxBackups: maxBackups,
		now:        time.Now,
	}
}

// DefaultDir returns the backup directory next to a SQLite database file.
func DefaultDir(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), constants.BackupDirName)
}

func (m *Manager) GetBackupDir() string {
	return m.backupDir
}

// Create exports into a new backup file and rotates old ones.
func (m *Manager) Create(ctx context.Context, exp Exporter) (string, error) {
	return m.create(ctx, exp, false)
}

// CreateSafety exports into a new backup file without rotating, so the copy
// taken before an import cannot push out the file being imported.
func (m *Manager) CreateSafety(ctx context.Context, exp Exporter) (string, error) {
	return m.create(ctx, exp, true)
}

func (m *Manager) create(ctx context.Context, exp Exporter, skipRotation bool) (string, error) {
	var buf bytes.Buffer
	if err := exp.Export(ctx, &buf); err != nil {
		return "", err
	}

	if err := os.MkdirAll(m.backupDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	path, err := m.nextPath()
	if err != nil {
		return "", err
	}

	// write then rename so a listed backup is always complete
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0600); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write backup: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to finalize backup: %w", err)
	}

	if !skipRotation {
		if err := m.rotate(); err != nil {
			logger.Warn("Failed to rotate old backups", "dir", m.backupDir, "error", err)
		}
	}

	logger.Info("Backup created", "path", path)
	return path, nil
}

// nextPath picks a free file name, widening the timestamp to seconds and then
// adding a counter when backups are taken in quick succession.
func (m *Manager) nextPath() (string, error) {
	now := m.now()
	candidate := func(stamp string, n int) string {
		name := constants.BackupFilePrefix + stamp
		if n > 0 {
			name += "-" + strconv.Itoa(n)
		}
		return filepath.Join(m.backupDir, name+constants.BackupFileSuffix)
	}

	path := candidate(now.Format(minuteLayout), 0)
	if !exists(path) {
		return path, nil
	}
	stamp := now.Format(secondLayout)
	for n := 0; n <= 100; n++ {
		path = candidate(stamp, n)
		if !exists(path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique backup filename")
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// parseName extracts the timestamp and counter from a backup file name.
func parseName(name string) (time.Time, int, bool) {
	if !strings.HasPrefix(name, constants.BackupFilePrefix) || !strings.HasSuffix(name, constants.BackupFileSuffix) {
		return time.Time{}, 0, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, constants.BackupFilePrefix), constants.BackupFileSuffix)

	seq := 0
	parts := strings.Split(stamp, "-")
	if len(parts) == 3 {
		n, err := strconv.Atoi(parts[2])
		if err != nil {
			return time.Time{}, 0, false
		}
		seq = n
		stamp = parts[0] + "-" + parts[1]
	}

	for _, layout := range []string{minuteLayout, secondLayout} {
		if len(stamp) != len(layout) {
			continue
		}
		if ts, err := time.ParseInLocation(layout, stamp, time.Local); err == nil {
			return ts, seq, true
		}
	}
	return time.Time{}, 0, false
}

// ListBackups returns all backups, newest first.
func (m *Manager) ListBackups() ([]Info, error) {
	entries, err := os.ReadDir(m.backupDir)
	if os.IsNotExist(err) {
		return []Info{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := []Info{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ts, seq, ok := parseName(entry.Name())
		if !ok {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Info{
			Name:      entry.Name(),
			Path:      filepath.Join(m.backupDir, entry.Name()),
			Timestamp: ts,
			Size:      fi.Size(),
			seq:       seq,
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		if !backups[i].Timestamp.Equal(backups[j].Timestamp) {
			return backups[i].Timestamp.After(backups[j].Timestamp)
		}
		return backups[i].seq > backups[j].seq
	})
	return backups, nil
}

func (m *Manager) rotate() error {
	backups, err := m.ListBackups()
	if err != nil {
		return err
	}
	for i := m.maxBackups; i < len(backups); i++ {
		if err := os.Remove(backups[i].Path); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", backups[i].Path, err)
		}
	}
	return nil
}

// Resolve maps a managed backup name, or "latest", to its path. Anything else
// is treated as a file path and must exist.
func (m *Manager) Resolve(ref string) (string, error) {
	if ref == "latest" {
		backups, err := m.ListBackups()
		if err != nil {
			return "", err
		}
		if len(backups) == 0 {
			return "", fmt.Errorf("no backups found in %s", m.backupDir)
		}
		return backups[0].Path, nil
	}

	if _, _, ok := parseName(ref); ok && filepath.Base(ref) == ref {
		path := filepath.Join(m.backupDir, ref)
		if exists(path) {
			return path, nil
		}
	}
	if !exists(ref) {
		return "", fmt.Errorf("backup file does not exist: %s", ref)
	}
	return ref, nil
}
