// Package files implements the sandboxed file operations exposed to the
// operator and to the model: listing with search, reading, writing with
// automatic backups, restoring backups, and resolving public URLs to source
// files. Every path goes through the sandbox before it touches the disk.
package files

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/ChamsBouzaiene/sitesmith/internal/backup"
	"github.com/ChamsBouzaiene/sitesmith/internal/diff"
	"github.com/ChamsBouzaiene/sitesmith/internal/sandbox"
)

const (
	DefaultDataDir     = ".sitesmith"
	DefaultEntryScript = "editor.php"
	DefaultDocument    = "index.php"
	backupsDir         = "backups"
)

const (
	EntryTypeFile = "file"
	EntryTypeDir  = "dir"
)

var (
	// ErrNotFound is returned for paths that do not exist or have the wrong type.
	ErrNotFound = errors.New("not found")
	// ErrIO wraps filesystem failures while reading or writing live files.
	ErrIO = errors.New("i/o error")
)

// Config describes the project tree a Manager operates on.
type Config struct {
	Root            string
	DataDir         string
	EntryScript     string
	Protected       []string
	PublicRoot      string
	DefaultDocument string
	IgnorePatterns  []string
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.EntryScript == "" {
		c.EntryScript = DefaultEntryScript
	}
	if c.DefaultDocument == "" {
		c.DefaultDocument = DefaultDocument
	}
	if c.IgnorePatterns == nil {
		c.IgnorePatterns = []string{".git"}
	}
}

// Entry is one listing result.
type Entry struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Path string `json:"path"`
}

// ListOptions controls List.
type ListOptions struct {
	Recursive     bool
	SearchPattern string
	StrictMode    bool
	FileOnly      bool
}

// Manager performs file operations inside one sandboxed project root.
type Manager struct {
	cfg    Config
	sb     *sandbox.Sandbox
	store  *backup.Store
	fs     FileSystem
	ignore *gitignore.GitIgnore
}

// Option configures a Manager.
type Option func(*Manager)

// WithFileSystem replaces the filesystem used for live files.
func WithFileSystem(fsys FileSystem) Option {
	return func(m *Manager) { m.fs = fsys }
}

// WithBackupOptions forwards options to the backup store.
func WithBackupOptions(opts ...backup.Option) Option {
	return func(m *Manager) {
		m.store = backup.NewStore(m.BackupDir(), m.sb.Root(), append(m.storeDefaults(), opts...)...)
	}
}

// NewManager creates a Manager. The entry script and data directory are
// always part of the protected zone.
func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	cfg.applyDefaults()

	protected := append([]string{cfg.EntryScript, cfg.DataDir}, cfg.Protected...)
	sb, err := sandbox.New(cfg.Root, protected...)
	if err != nil {
		return nil, err
	}
	cfg.Root = sb.Root()

	m := &Manager{
		cfg: cfg,
		sb:  sb,
		fs:  OSFileSystem{},
	}
	if len(cfg.IgnorePatterns) > 0 {
		m.ignore = gitignore.CompileIgnoreLines(cfg.IgnorePatterns...)
	}
	m.store = backup.NewStore(m.BackupDir(), sb.Root(), m.storeDefaults()...)

	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Manager) storeDefaults() []backup.Option {
	return []backup.Option{backup.WithSkip(m.excluded)}
}

// Root returns the absolute project root.
func (m *Manager) Root() string { return m.sb.Root() }

// BackupDir returns the absolute backup directory.
func (m *Manager) BackupDir() string {
	return filepath.Join(m.sb.Root(), filepath.FromSlash(m.cfg.DataDir), backupsDir)
}

// Sandbox exposes the path sandbox.
func (m *Manager) Sandbox() *sandbox.Sandbox { return m.sb }

// List returns the entries under dir. Protected and ignored paths are never
// included; recursive listings descend into directories that do not match the
// search pattern themselves.
func (m *Manager) List(dir string, opts ListOptions) ([]Entry, error) {
	abs, err := m.sb.Resolve(dir)
	if err != nil {
		return nil, err
	}
	info, err := m.fs.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: directory %s", ErrNotFound, dir)
	}

	entries := []Entry{}
	add := func(rel string, isDir bool) {
		if isDir && opts.FileOnly {
			return
		}
		if opts.SearchPattern != "" && !Match(opts.SearchPattern, rel, opts.StrictMode) {
			return
		}
		typ := EntryTypeFile
		if isDir {
			typ = EntryTypeDir
		}
		entries = append(entries, Entry{Name: path.Base(rel), Type: typ, Path: rel})
	}

	if !opts.Recursive {
		dirEntries, err := m.fs.ReadDir(abs)
		if err != nil {
			return nil, fmt.Errorf("%w: list %s: %w", ErrIO, dir, err)
		}
		for _, de := range dirEntries {
			rel, err := m.sb.Rel(filepath.Join(abs, de.Name()))
			if err != nil || m.excluded(rel) {
				continue
			}
			add(rel, de.IsDir())
		}
		return entries, nil
	}

	err = m.fs.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if p == abs {
			return nil
		}
		rel, relErr := m.sb.Rel(p)
		if relErr != nil {
			return nil
		}
		if m.excluded(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		add(rel, d.IsDir())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walk %s: %w", ErrIO, dir, err)
	}
	return entries, nil
}

func (m *Manager) excluded(rel string) bool {
	if m.sb.IsProtected(rel) {
		return true
	}
	return m.ignore != nil && m.ignore.MatchesPath(rel)
}

// Read returns the contents of a regular file.
func (m *Manager) Read(p string) ([]byte, error) {
	abs, err := m.sb.Resolve(p)
	if err != nil {
		return nil, err
	}
	info, err := m.fs.Stat(abs)
	if err != nil || !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: file %s", ErrNotFound, p)
	}
	data, err := m.fs.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrIO, p, err)
	}
	return data, nil
}

// Write replaces the contents of p, creating parent directories as needed.
// An existing file is snapshotted first; if the snapshot fails nothing is
// written.
func (m *Manager) Write(p string, data []byte) error {
	abs, err := m.sb.Resolve(p)
	if err != nil {
		return err
	}

	if info, err := m.fs.Stat(abs); err == nil {
		if info.IsDir() {
			return fmt.Errorf("%w: %s is a directory", ErrIO, p)
		}
		if _, err := m.store.Snapshot(abs); err != nil {
			return err
		}
	}

	if err := m.fs.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return fmt.Errorf("%w: create directory for %s: %w", ErrIO, p, err)
	}
	if err := m.fs.WriteFile(abs, data, 0644); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrIO, p, err)
	}
	return nil
}

// ListBackups returns all backups, newest first.
func (m *Manager) ListBackups() ([]backup.Record, error) {
	return m.store.List()
}

// Restore writes a backup over its original file and returns the restored
// file's root-relative path.
func (m *Manager) Restore(backupPath string) (string, error) {
	abs, err := m.store.Restore(backupPath, m.sb.Resolve)
	if err != nil {
		return "", err
	}
	return m.sb.Rel(abs)
}

// DiffBackup compares a backup with the live file it would replace. A missing
// live file diffs against empty content. The boolean reports that the inputs
// were too large to diff.
func (m *Manager) DiffBackup(backupPath string) ([]diff.Hunk, bool, error) {
	rec, err := m.store.Lookup(backupPath)
	if err != nil {
		return nil, false, err
	}
	rel, err := m.store.Target(rec)
	if err != nil {
		return nil, false, err
	}
	abs, err := m.sb.Resolve(rel)
	if err != nil {
		return nil, false, err
	}

	old, err := m.fs.ReadFile(rec.Path)
	if err != nil {
		return nil, false, fmt.Errorf("%w: read backup %s: %w", ErrIO, rec.Name, err)
	}
	live, err := m.fs.ReadFile(abs)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, false, fmt.Errorf("%w: read %s: %w", ErrIO, rel, err)
	}

	hunks, truncated := diff.WithLimit(string(old), string(live), diff.MaxDiffLines)
	return hunks, truncated, nil
}

// Error codes reported for failed direct operations.
const (
	CodePathEscape    = "path_escape"
	CodeProtectedPath = "protected_path"
	CodeNotFound      = "not_found"
	CodeInvalidFormat = "invalid_format"
	CodeIOError       = "io_error"
)

// Classify maps an error returned by the Manager to its error code.
func Classify(err error) string {
	switch {
	case errors.Is(err, sandbox.ErrPathEscape):
		return CodePathEscape
	case errors.Is(err, sandbox.ErrProtectedPath):
		return CodeProtectedPath
	case errors.Is(err, ErrNotFound), errors.Is(err, backup.ErrNotFound), errors.Is(err, backup.ErrRestoreTarget):
		return CodeNotFound
	case errors.Is(err, backup.ErrInvalidFormat):
		return CodeInvalidFormat
	default:
		return CodeIOError
	}
}
