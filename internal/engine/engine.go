package engine

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/appstash/appstash/internal/bundle"
	"github.com/appstash/appstash/internal/config"
	"github.com/appstash/appstash/internal/core"
	"github.com/appstash/appstash/internal/desktop"
	"github.com/appstash/appstash/internal/helpers"
	"github.com/appstash/appstash/internal/history"
	"github.com/appstash/appstash/internal/lockfile"
	"github.com/appstash/appstash/internal/placement"
	"github.com/appstash/appstash/internal/registry"
	"github.com/appstash/appstash/internal/security"
	"github.com/appstash/appstash/internal/transaction"
	"github.com/rs/zerolog"
)

// Reporter is the capability interface the engine talks to the presentation
// layer through. Each presentation mode (terminal, plain/non-interactive)
// provides its own implementation; the engine knows nothing else about it.
type Reporter interface {
	Progress(ev core.ProgressEvent)
	Info(format string, args ...interface{})
	Success(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Failure(format string, args ...interface{})
}

// Engine orchestrates install, deinstall, backup, and reinstall as ordered
// sequences of registry, desktop-entry, and file-placement operations with
// rollback on partial failure. Every mutating operation holds the exclusive
// advisory lock for its duration, released on every exit path.
type Engine struct {
	cfg      *config.Config
	store    *registry.Store
	placer   *placement.Manager
	journal  *history.DB // optional, nil disables the journal
	logger   *zerolog.Logger
	reporter Reporter
}

// New creates a lifecycle engine bound to an opened registry store
func New(cfg *config.Config, store *registry.Store, journal *history.DB, logger *zerolog.Logger, reporter Reporter) *Engine {
	return &Engine{
		cfg:      cfg,
		store:    store,
		placer:   placement.NewManager(logger),
		journal:  journal,
		logger:   logger,
		reporter: reporter,
	}
}

// Store exposes the underlying registry for read-only presentation needs
func (e *Engine) Store() *registry.Store {
	return e.store
}

// Install places the package files, writes the desktop entry, then records
// and persists the metadata, in that order: if any later step fails, no
// desktop entry or registry row ever points at a missing or partially
// copied package. On failure all prior steps of this operation are undone.
func (e *Engine) Install(ctx context.Context, req core.InstallRequest) (*core.PackageRecord, error) {
	if err := validateInstall(req); err != nil {
		return nil, err
	}

	lock, err := lockfile.Acquire(e.cfg.LockFile())
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	// The store may have been loaded before the lock; refresh it so this
	// operation never saves over changes another instance made in between.
	if err := e.store.Reload(); err != nil {
		return nil, err
	}

	rec, err := e.install(ctx, req)
	e.journalEvent(ctx, history.OpInstall, req.ID, req.Name, err)
	return rec, err
}

// install runs the install steps; the caller holds the store lock.
func (e *Engine) install(ctx context.Context, req core.InstallRequest) (*core.PackageRecord, error) {
	existing, exists := e.store.Get(req.ID)
	if exists && !req.Replace {
		return nil, core.NewError(core.ErrDuplicateID, "package %q is already installed", req.ID)
	}
	if exists {
		e.logger.Info().Str("package_id", req.ID).Msg("replacing existing package")
		e.reporter.Info("replacing installed package %s", existing.ID)
		if err := e.deinstall(ctx, req.ID); err != nil {
			return nil, err
		}
	}

	e.logger.Info().
		Str("package_id", req.ID).
		Str("executable", req.ExecutablePath).
		Msg("installing package")

	tx := transaction.New(e.logger)

	packagesDir := e.store.PackagesDirectory()
	placed, err := e.placer.Place(req.ID, req.ExecutablePath, req.AdditionalFiles, req.IconPath,
		packagesDir, func(ev core.ProgressEvent) { e.reporter.Progress(ev) })
	if err != nil {
		return nil, err
	}
	tx.Add("remove package files", func() error {
		return e.placer.Remove(req.ID, packagesDir)
	})

	rec := buildRecord(req, placed)

	entry := desktop.EntryFor(rec, packagesDir)
	if _, err := desktop.WriteFile(e.store.DesktopFilesDirectory(), req.ID, entry); err != nil {
		rollback(tx, e.logger)
		return nil, core.WrapError(core.ErrCopyFailed, desktop.EntryPath(e.store.DesktopFilesDirectory(), req.ID), err,
			"cannot write desktop entry")
	}
	tx.Add("remove desktop entry", func() error {
		return desktop.Remove(e.store.DesktopFilesDirectory(), req.ID)
	})

	if err := e.store.Put(*rec, req.Replace); err != nil {
		rollback(tx, e.logger)
		return nil, err
	}
	if err := e.store.Save(); err != nil {
		// Undo the in-memory put so store and disk stay in step
		_ = e.store.Remove(req.ID)
		rollback(tx, e.logger)
		return nil, core.WrapError(core.ErrCopyFailed, e.store.Path(), err, "cannot save registry")
	}

	tx.Commit()

	e.logger.Info().
		Str("package_id", rec.ID).
		Str("dir", placed.Dir).
		Msg("package installed")
	e.reporter.Success("installed %s (%s)", rec.Name, rec.ID)

	return rec, nil
}

// Deinstall removes the desktop entry, then the metadata record, then the
// package directory. The entry goes first so the program disappears from
// the menu even if a later step fails; a crash mid-way leaves at worst an
// orphaned directory, cleaned up by re-running deinstall. The whole
// operation is idempotent: deinstalling an absent package is not an error.
func (e *Engine) Deinstall(ctx context.Context, id string) error {
	if err := security.ValidatePackageID(id); err != nil {
		return core.NewError(core.ErrValidation, "invalid package ID: %v", err)
	}

	lock, err := lockfile.Acquire(e.cfg.LockFile())
	if err != nil {
		return err
	}
	defer lock.Release()

	if err := e.store.Reload(); err != nil {
		return err
	}

	err = e.deinstall(ctx, id)
	e.journalEvent(ctx, history.OpDeinstall, id, "", err)
	return err
}

func (e *Engine) deinstall(ctx context.Context, id string) error {
	_, exists := e.store.Get(id)

	e.logger.Info().Str("package_id", id).Bool("recorded", exists).Msg("deinstalling package")

	if err := desktop.Remove(e.store.DesktopFilesDirectory(), id); err != nil {
		return core.WrapError(core.ErrCopyFailed, desktop.EntryPath(e.store.DesktopFilesDirectory(), id), err,
			"cannot remove desktop entry")
	}

	if exists {
		if err := e.store.Remove(id); err != nil {
			return err
		}
		if err := e.store.Save(); err != nil {
			return core.WrapError(core.ErrCopyFailed, e.store.Path(), err, "cannot save registry")
		}
	}

	if err := e.placer.Remove(id, e.store.PackagesDirectory()); err != nil {
		return err
	}

	e.reporter.Success("deinstalled %s", id)
	return nil
}

// Backup serializes the selected (or all) records into a bundle at the
// destination. It captures intent, not artifacts: no package files or
// desktop entries are copied. Unreachable sources are reported per record
// as warnings, never as a hard failure.
func (e *Engine) Backup(ctx context.Context, req core.BackupRequest) (*bundle.Bundle, []core.BackupWarning, error) {
	if req.Destination == "" {
		return nil, nil, core.NewError(core.ErrValidation, "backup destination is required")
	}

	var records []core.PackageRecord
	if len(req.IDs) == 0 {
		records = e.store.List()
	} else {
		for _, id := range req.IDs {
			rec, ok := e.store.Get(id)
			if !ok {
				return nil, nil, core.NewError(core.ErrNotFound, "package %q is not installed", id)
			}
			records = append(records, rec)
		}
	}

	var warnings []core.BackupWarning
	for _, rec := range records {
		if _, err := os.Stat(rec.SourceExecutable); err != nil {
			warnings = append(warnings, core.BackupWarning{
				ID:     rec.ID,
				Source: rec.SourceExecutable,
				Err: core.WrapError(core.ErrSourceUnreachable, rec.SourceExecutable, err,
					"original source for %q is no longer reachable", rec.ID),
			})
		}
	}

	b := bundle.New(records)
	if err := bundle.Write(req.Destination, b, req.Compress); err != nil {
		return nil, warnings, core.WrapError(core.ErrCopyFailed, req.Destination, err, "cannot write bundle")
	}

	e.logger.Info().
		Str("destination", req.Destination).
		Int("packages", len(records)).
		Int("warnings", len(warnings)).
		Msg("backup written")
	e.reporter.Success("backed up %d package(s) to %s", len(records), req.Destination)

	e.journalEvent(ctx, history.OpBackup, "", req.Destination, nil)
	return b, warnings, nil
}

// Reinstall re-runs Install for every record of a bundle using the stored
// source references. Each record succeeds or fails independently; one
// failure never aborts the batch.
func (e *Engine) Reinstall(ctx context.Context, b *bundle.Bundle, replace bool) []core.ReinstallResult {
	lock, err := lockfile.Acquire(e.cfg.LockFile())
	if err != nil {
		return failAllResults(b, err)
	}
	defer lock.Release()

	if err := e.store.Reload(); err != nil {
		return failAllResults(b, err)
	}

	results := make([]core.ReinstallResult, 0, len(b.Packages))
	for _, rec := range b.Packages {
		res := core.ReinstallResult{ID: rec.ID}

		if _, err := os.Stat(rec.SourceExecutable); err != nil {
			res.Err = core.WrapError(core.ErrSourceUnreachable, rec.SourceExecutable, err,
				"source for %q is not reachable", rec.ID)
		} else {
			req := requestFromRecord(rec, replace)
			if err := validateInstall(req); err != nil {
				res.Err = err
			} else if _, err := e.install(ctx, req); err != nil {
				res.Err = err
			}
		}

		if res.Err != nil {
			e.logger.Warn().Err(res.Err).Str("package_id", rec.ID).Msg("reinstall failed")
			e.reporter.Failure("reinstall %s: %v", rec.ID, res.Err)
		}
		e.journalEvent(ctx, history.OpReinstall, rec.ID, rec.Name, res.Err)
		results = append(results, res)
	}

	return results
}

// Leftovers lists package directories without a registry record, typically
// left behind by an interrupted operation.
func (e *Engine) Leftovers() ([]string, error) {
	return e.store.Orphans()
}

func (e *Engine) journalEvent(ctx context.Context, op, id, name string, opErr error) {
	if e.journal == nil {
		return
	}
	ev := history.Event{
		Operation: op,
		PackageID: id,
		Name:      name,
		Timestamp: time.Now(),
		Success:   opErr == nil,
	}
	if opErr != nil {
		ev.Detail = opErr.Error()
	}
	if err := e.journal.Record(ctx, ev); err != nil {
		e.logger.Warn().Err(err).Str("operation", op).Msg("failed to record history event")
	}
}

func failAllResults(b *bundle.Bundle, err error) []core.ReinstallResult {
	results := make([]core.ReinstallResult, 0, len(b.Packages))
	for _, rec := range b.Packages {
		results = append(results, core.ReinstallResult{ID: rec.ID, Err: err})
	}
	return results
}

func rollback(tx *transaction.Log, logger *zerolog.Logger) {
	if err := tx.Rollback(); err != nil {
		logger.Error().Err(err).Msg("rollback incomplete, manual cleanup may be required")
	}
}

// validateInstall rejects bad requests before any side effect happens
func validateInstall(req core.InstallRequest) error {
	if err := security.ValidatePackageID(req.ID); err != nil {
		return core.NewError(core.ErrValidation, "invalid package ID: %v", err)
	}
	if req.Name == "" {
		return core.NewError(core.ErrValidation, "package name is required")
	}
	if err := security.ValidateSourcePath(req.ExecutablePath); err != nil {
		return core.NewError(core.ErrValidation, "invalid executable path: %v", err)
	}
	if info, err := os.Stat(req.ExecutablePath); err != nil {
		return core.NewError(core.ErrValidation, "executable not found: %s", req.ExecutablePath)
	} else if info.IsDir() {
		return core.NewError(core.ErrValidation, "executable is a directory: %s", req.ExecutablePath)
	}
	for _, f := range req.AdditionalFiles {
		if err := security.ValidateSourcePath(f); err != nil {
			return core.NewError(core.ErrValidation, "invalid additional file path: %v", err)
		}
		if _, err := os.Stat(f); err != nil {
			return core.NewError(core.ErrValidation, "additional file not found: %s", f)
		}
	}
	if req.IconPath != "" {
		if _, err := os.Stat(req.IconPath); err != nil {
			return core.NewError(core.ErrValidation, "icon not found: %s", req.IconPath)
		}
	}
	return nil
}

func buildRecord(req core.InstallRequest, placed *placement.Placed) *core.PackageRecord {
	srcExec, _ := filepath.Abs(req.ExecutablePath)
	if srcExec == "" {
		srcExec = req.ExecutablePath
	}

	return &core.PackageRecord{
		ID:               req.ID,
		Name:             req.Name,
		GenericName:      req.GenericName,
		Comment:          req.Comment,
		ExecutablePath:   placed.ExecutablePath,
		AdditionalFiles:  placed.AdditionalFiles,
		IconPath:         placed.IconPath,
		Categories:       req.Categories,
		Keywords:         req.Keywords,
		Terminal:         req.Terminal,
		Kind:             helpers.DetectSourceKind(req.ExecutablePath),
		SourceExecutable: srcExec,
		SourceAdditional: req.AdditionalFiles,
		SourceIcon:       req.IconPath,
		InstallDate:      time.Now(),
	}
}

func requestFromRecord(rec core.PackageRecord, replace bool) core.InstallRequest {
	return core.InstallRequest{
		ID:              rec.ID,
		Name:            rec.Name,
		GenericName:     rec.GenericName,
		Comment:         rec.Comment,
		ExecutablePath:  rec.SourceExecutable,
		AdditionalFiles: rec.SourceAdditional,
		IconPath:        rec.SourceIcon,
		Categories:      rec.Categories,
		Keywords:        rec.Keywords,
		Terminal:        rec.Terminal,
		Replace:         replace,
	}
}
