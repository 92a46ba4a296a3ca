package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/appstash/appstash/internal/core"
	"github.com/rs/zerolog"
)

// document is the on-disk registry layout. It must round-trip exactly:
// load -> save -> load produces the identical in-memory structure.
type document struct {
	PackagesDirectory     string                        `json:"packages_directory"`
	DesktopFilesDirectory string                        `json:"desktop_files_directory"`
	Packages              map[string]core.PackageRecord `json:"packages"`
}

// Store owns the mapping from package ID to record and its persistence.
// The lifecycle engine never mutates records directly, only through Put
// and Remove, so persisted and in-memory state cannot diverge.
type Store struct {
	path   string
	doc    document
	logger *zerolog.Logger
}

// Open loads the registry file at path. A missing file is a first run and
// yields an empty store configured with the given directories; a file that
// exists but cannot be parsed is fatal (corrupt registry).
func Open(path, packagesDir, desktopDir string, logger *zerolog.Logger) (*Store, error) {
	s := &Store{
		path: path,
		doc: document{
			PackagesDirectory:     packagesDir,
			DesktopFilesDirectory: desktopDir,
			Packages:              make(map[string]core.PackageRecord),
		},
		logger: logger,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug().Str("path", path).Msg("registry file not found, starting empty")
			return s, nil
		}
		return nil, core.WrapError(core.ErrCorruptRegistry, path, err, "cannot read registry file")
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, core.WrapError(core.ErrCorruptRegistry, path, err, "cannot parse registry file")
	}
	if doc.Packages == nil {
		doc.Packages = make(map[string]core.PackageRecord)
	}
	for id, rec := range doc.Packages {
		if rec.ID != id {
			return nil, core.WrapError(core.ErrCorruptRegistry, path, nil,
				"registry entry %q carries mismatched ID %q", id, rec.ID)
		}
	}
	s.doc = doc

	logger.Debug().
		Str("path", path).
		Int("packages", len(doc.Packages)).
		Msg("registry loaded")

	return s, nil
}

// Reload re-reads the registry file, replacing the in-memory snapshot.
// Mutating operations call this after acquiring the store lock, so a
// snapshot loaded before the lock never overwrites another instance's
// saved changes.
func (s *Store) Reload() error {
	fresh, err := Open(s.path, s.doc.PackagesDirectory, s.doc.DesktopFilesDirectory, s.logger)
	if err != nil {
		return err
	}
	s.doc = fresh.doc
	return nil
}

// Save atomically persists the full record set: write to a temp file in the
// same directory, sync, then rename over the registry. A crash mid-write
// never corrupts the previous valid registry.
func (s *Store) Save() error {
	data, err := json.MarshalIndent(&s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".registry-*.json")
	if err != nil {
		return fmt.Errorf("create temp registry file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp registry file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp registry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp registry file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace registry file: %w", err)
	}

	s.logger.Debug().
		Str("path", s.path).
		Int("packages", len(s.doc.Packages)).
		Msg("registry saved")

	return nil
}

// Put inserts a record. Inserting an ID that collides with an existing
// record fails with DuplicateID unless replace is set (explicit update
// flow only, never the default).
func (s *Store) Put(rec core.PackageRecord, replace bool) error {
	if _, exists := s.doc.Packages[rec.ID]; exists && !replace {
		return core.NewError(core.ErrDuplicateID, "package %q is already installed", rec.ID)
	}
	s.doc.Packages[rec.ID] = rec
	return nil
}

// Remove deletes a record, failing with NotFound if the ID is absent
func (s *Store) Remove(id string) error {
	if _, exists := s.doc.Packages[id]; !exists {
		return core.NewError(core.ErrNotFound, "package %q is not installed", id)
	}
	delete(s.doc.Packages, id)
	return nil
}

// Get returns the record for id
func (s *Store) Get(id string) (core.PackageRecord, bool) {
	rec, ok := s.doc.Packages[id]
	return rec, ok
}

// List returns all records sorted by ID
func (s *Store) List() []core.PackageRecord {
	records := make([]core.PackageRecord, 0, len(s.doc.Packages))
	for _, rec := range s.doc.Packages {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})
	return records
}

// Len returns the number of records
func (s *Store) Len() int {
	return len(s.doc.Packages)
}

// Path returns the registry file path
func (s *Store) Path() string {
	return s.path
}

// PackagesDirectory returns the configured package store root
func (s *Store) PackagesDirectory() string {
	return s.doc.PackagesDirectory
}

// DesktopFilesDirectory returns the configured desktop entry directory
func (s *Store) DesktopFilesDirectory() string {
	return s.doc.DesktopFilesDirectory
}

// Orphans lists directories in the package store that have no registry
// record. These are leftovers of an interrupted operation; re-running
// deinstall on the directory name cleans them up.
func (s *Store) Orphans() ([]string, error) {
	entries, err := os.ReadDir(s.doc.PackagesDirectory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read packages directory: %w", err)
	}

	var orphans []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, ok := s.doc.Packages[entry.Name()]; !ok {
			orphans = append(orphans, entry.Name())
		}
	}
	sort.Strings(orphans)
	return orphans, nil
}
