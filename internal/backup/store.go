// Package backup snapshots files before they are overwritten and restores
// those snapshots on request.
//
// Snapshots live flat in one directory and are named
// "<timestamp>_<basename>", where the timestamp sorts lexically in creation
// order. The root-relative location of every snapshot's source is recorded in
// a manifest next to them so a restore does not have to guess where the file
// came from.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// TimestampLayout is the sortable prefix of every backup filename.
const TimestampLayout = "20060102-150405.000000"

// ManifestFile maps backup names to the root-relative path they were taken from.
const ManifestFile = "manifest.json"

var namePattern = regexp.MustCompile(`^(\d{8}-\d{6}\.\d{6})_(.+)$`)

var (
	// ErrBackupWrite is returned when a snapshot cannot be written.
	ErrBackupWrite = errors.New("backup write failed")
	// ErrInvalidFormat is returned for backup references that do not name a backup.
	ErrInvalidFormat = errors.New("invalid backup name")
	// ErrNotFound is returned when the referenced backup does not exist.
	ErrNotFound = errors.New("backup not found")
	// ErrRestoreTarget is returned when the original location cannot be inferred.
	ErrRestoreTarget = errors.New("cannot infer restore target")
)

// Record describes one snapshot. Records are immutable once written.
type Record struct {
	Name         string    `json:"name"`
	Source       string    `json:"source"`
	CreatedAt    time.Time `json:"created_at"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	OriginalPath string    `json:"original_path,omitempty"`
}

// Store manages the backup directory for one project root.
type Store struct {
	dir  string
	root string
	now  func() time.Time
	skip func(rel string) bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for snapshot names.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSkip excludes root-relative paths from the basename search used when a
// snapshot has no manifest entry.
func WithSkip(skip func(rel string) bool) Option {
	return func(s *Store) { s.skip = skip }
}

// NewStore creates a Store writing into dir for files under root.
func NewStore(dir, root string, opts ...Option) *Store {
	s := &Store{
		dir:  filepath.Clean(dir),
		root: filepath.Clean(root),
		now:  time.Now,
		skip: func(string) bool { return false },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the backup directory.
func (s *Store) Dir() string { return s.dir }

// Snapshot copies the current bytes of absPath into the backup directory.
func (s *Store) Snapshot(absPath string) (Record, error) {
	data, err := os.ReadFile(absPath)
	if err != nil {
		return Record{}, fmt.Errorf("%w: read %s: %w", ErrBackupWrite, absPath, err)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return Record{}, fmt.Errorf("%w: create backup dir: %w", ErrBackupWrite, err)
	}

	base := filepath.Base(absPath)
	ts := s.now().UTC().Truncate(time.Microsecond)
	var name, dest string
	var f *os.File
	for {
		name = ts.Format(TimestampLayout) + "_" + base
		dest = filepath.Join(s.dir, name)
		f, err = os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) {
			return Record{}, fmt.Errorf("%w: %w", ErrBackupWrite, err)
		}
		ts = ts.Add(time.Microsecond)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(dest)
		return Record{}, fmt.Errorf("%w: %w", ErrBackupWrite, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dest)
		return Record{}, fmt.Errorf("%w: %w", ErrBackupWrite, err)
	}

	rec := Record{
		Name:      name,
		Source:    base,
		CreatedAt: ts,
		Path:      dest,
		Size:      int64(len(data)),
	}
	if rel, err := filepath.Rel(s.root, absPath); err == nil && !outside(rel) {
		rec.OriginalPath = filepath.ToSlash(rel)
		if err := s.remember(name, rec.OriginalPath); err != nil {
			return rec, fmt.Errorf("%w: update manifest: %w", ErrBackupWrite, err)
		}
	}
	return rec, nil
}

// List returns all snapshots, newest first. Entries whose names do not match
// the backup naming scheme are skipped.
func (s *Store) List() ([]Record, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	manifest, _ := s.loadManifest()

	records := make([]Record, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		rec, ok := parseName(entry.Name())
		if !ok {
			continue
		}
		if info, err := entry.Info(); err == nil {
			rec.Size = info.Size()
		}
		rec.Path = filepath.Join(s.dir, rec.Name)
		rec.OriginalPath = manifest[rec.Name]
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Name > records[j].Name
	})
	return records, nil
}

// Lookup validates a backup reference and returns its record. The reference
// is either a bare backup name or an absolute path inside the backup directory.
func (s *Store) Lookup(ref string) (Record, error) {
	name := ref
	if filepath.IsAbs(ref) || strings.ContainsAny(ref, `/\`) {
		clean := filepath.Clean(ref)
		if !filepath.IsAbs(clean) || filepath.Dir(clean) != s.dir {
			return Record{}, fmt.Errorf("%w: %s is not inside the backup directory", ErrInvalidFormat, ref)
		}
		name = filepath.Base(clean)
	}

	rec, ok := parseName(name)
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrInvalidFormat, ref)
	}
	rec.Path = filepath.Join(s.dir, name)

	info, err := os.Stat(rec.Path)
	if err != nil || !info.Mode().IsRegular() {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	rec.Size = info.Size()

	manifest, _ := s.loadManifest()
	rec.OriginalPath = manifest[name]
	return rec, nil
}

// Target works out where a backup should be restored to, as a root-relative
// path. The manifest is authoritative; without an entry, the tree is searched
// for exactly one file with the backup's basename. Zero or several matches
// fail rather than guessing.
func (s *Store) Target(rec Record) (string, error) {
	if rec.OriginalPath != "" {
		return rec.OriginalPath, nil
	}

	var matches []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(s.root, p)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if p == s.dir || s.skip(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && d.Name() == rec.Source {
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRestoreTarget, err)
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", fmt.Errorf("%w: no file named %s in project", ErrRestoreTarget, rec.Source)
	default:
		return "", fmt.Errorf("%w: %d files named %s (%s)", ErrRestoreTarget, len(matches), rec.Source, strings.Join(matches, ", "))
	}
}

// Restore writes the backup's bytes over its live file. resolve maps the
// root-relative target through the caller's sandbox. The live file is
// snapshotted first so a restore never destroys the state it replaces.
func (s *Store) Restore(ref string, resolve func(rel string) (string, error)) (string, error) {
	rec, err := s.Lookup(ref)
	if err != nil {
		return "", err
	}
	rel, err := s.Target(rec)
	if err != nil {
		return "", err
	}
	target, err := resolve(rel)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(rec.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read backup %s: %w", rec.Name, err)
	}

	if info, err := os.Stat(target); err == nil {
		if !info.Mode().IsRegular() {
			return "", fmt.Errorf("restore target %s is not a regular file", rel)
		}
		if _, err := s.Snapshot(target); err != nil {
			return "", err
		}
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(target, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return target, nil
}

func outside(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func parseName(name string) (Record, bool) {
	m := namePattern.FindStringSubmatch(name)
	if m == nil {
		return Record{}, false
	}
	ts, err := time.Parse(TimestampLayout, m[1])
	if err != nil {
		return Record{}, false
	}
	return Record{Name: name, Source: m[2], CreatedAt: ts}, true
}

func (s *Store) loadManifest() (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, ManifestFile))
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return map[string]string{}, err
	}
	m := map[string]string{}
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]string{}, err
	}
	return m, nil
}

func (s *Store) remember(name, rel string) error {
	m, err := s.loadManifest()
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	m[name] = rel
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(s.dir, ManifestFile+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(s.dir, ManifestFile))
}
