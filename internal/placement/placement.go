package placement

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/appstash/appstash/internal/core"
	"github.com/appstash/appstash/internal/helpers"
	"github.com/appstash/appstash/internal/icons"
	"github.com/rs/zerolog"
)

// ProgressFunc receives incremental copy progress
type ProgressFunc func(core.ProgressEvent)

// Placed describes the canonical in-store layout produced by Place. All
// paths except Dir and IconPath are relative to the package directory.
type Placed struct {
	Dir             string
	ExecutablePath  string
	AdditionalFiles []string
	IconPath        string
}

// Manager copies program files into and out of per-package directories
// inside the package store.
type Manager struct {
	logger *zerolog.Logger
}

// NewManager creates a new placement manager
func NewManager(logger *zerolog.Logger) *Manager {
	return &Manager{logger: logger}
}

// Place creates <packagesDir>/<id>/ and copies the executable, each
// additional file or directory, and the icon into it. Copying is
// file-by-file; if anything fails partway the directory and everything
// copied so far are removed before the error is surfaced, so a package is
// never left half-populated.
func (m *Manager) Place(id, executable string, additional []string, icon, packagesDir string, progress ProgressFunc) (*Placed, error) {
	dir := filepath.Join(packagesDir, id)

	if _, err := os.Stat(dir); err == nil {
		return nil, core.NewError(core.ErrAlreadyExists,
			"package directory for %q already exists, maybe the package is already installed", id)
	} else if !os.IsNotExist(err) {
		return nil, core.WrapError(core.ErrCopyFailed, dir, err, "cannot access package directory")
	}

	if err := os.MkdirAll(packagesDir, 0755); err != nil {
		return nil, core.WrapError(core.ErrCopyFailed, packagesDir, err, "cannot create packages directory")
	}
	if err := os.Mkdir(dir, 0755); err != nil {
		return nil, core.WrapError(core.ErrCopyFailed, dir, err, "cannot create package directory")
	}

	run := &placeRun{
		packageID: id,
		progress:  progress,
	}
	run.countSources(append([]string{executable}, additional...), icon)

	placed, err := m.place(run, dir, id, executable, additional, icon)
	if err != nil {
		// Best-effort rollback: the directory is ours, remove it wholesale
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			m.logger.Warn().Err(rmErr).Str("dir", dir).Msg("rollback of package directory failed")
		}
		return nil, err
	}

	m.logger.Debug().
		Str("package_id", id).
		Str("dir", dir).
		Int("files", run.filesDone).
		Msg("package files placed")

	return placed, nil
}

func (m *Manager) place(run *placeRun, dir, id, executable string, additional []string, icon string) (*Placed, error) {
	placed := &Placed{Dir: dir}

	execName := filepath.Base(executable)
	if err := run.copyFile(executable, filepath.Join(dir, execName)); err != nil {
		return nil, err
	}
	// Downloaded AppImages often lack the executable bit; ensure it here
	if err := helpers.MakeExecutable(filepath.Join(dir, execName)); err != nil {
		return nil, core.WrapError(core.ErrCopyFailed, executable, err, "cannot make executable")
	}
	placed.ExecutablePath = execName

	for _, src := range additional {
		rels, err := run.copyTree(src, dir)
		if err != nil {
			return nil, err
		}
		placed.AdditionalFiles = append(placed.AdditionalFiles, rels...)
	}

	if icon != "" {
		// The icon goes through run.copyFile so its bytes count toward the
		// totals countSources announced
		iconPath, err := icons.Stage(icon, id, dir, run.copyFile)
		if err != nil {
			return nil, core.WrapError(core.ErrCopyFailed, icon, err, "cannot place icon")
		}
		placed.IconPath = iconPath
	}

	return placed, nil
}

// Remove recursively deletes the package directory. A missing directory is
// not an error, which makes deinstall idempotent.
func (m *Manager) Remove(id, packagesDir string) error {
	dir := filepath.Join(packagesDir, id)
	if err := os.RemoveAll(dir); err != nil {
		return core.WrapError(core.ErrCopyFailed, dir, err, "cannot remove package directory")
	}
	return nil
}

// placeRun tracks progress state for one Place invocation
type placeRun struct {
	packageID  string
	progress   ProgressFunc
	bytes      int64
	totalBytes int64
	filesDone  int
	filesTotal int
	current    string
}

func (r *placeRun) countSources(sources []string, icon string) {
	if icon != "" {
		sources = append(sources, icon)
	}
	for _, src := range sources {
		filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return nil
			}
			r.filesTotal++
			if info.Mode().IsRegular() {
				r.totalBytes += info.Size()
			}
			return nil
		})
	}
}

func (r *placeRun) emit() {
	if r.progress == nil {
		return
	}
	r.progress(core.ProgressEvent{
		PackageID:  r.packageID,
		File:       r.current,
		Bytes:      r.bytes,
		TotalBytes: r.totalBytes,
		FilesDone:  r.filesDone,
		FilesTotal: r.filesTotal,
	})
}

func (r *placeRun) fileDone(src string) {
	r.filesDone++
	r.current = src
	r.emit()
}

// copyTree copies a file, symlink, or directory tree from src into dstDir,
// preserving relative structure, permission bits, and symbolic links. It
// returns the in-store relative paths of the copied files.
func (r *placeRun) copyTree(src, dstDir string) ([]string, error) {
	info, err := os.Lstat(src)
	if err != nil {
		return nil, core.WrapError(core.ErrCopyFailed, src, err, "source not found")
	}

	base := filepath.Base(src)

	if !info.IsDir() {
		if err := r.copyEntry(src, filepath.Join(dstDir, base), info); err != nil {
			return nil, err
		}
		return []string{base}, nil
	}

	var rels []string
	err = filepath.Walk(src, func(path string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return core.WrapError(core.ErrCopyFailed, path, walkErr, "cannot read source")
		}
		rel, relErr := filepath.Rel(src, path)
		if relErr != nil {
			return core.WrapError(core.ErrCopyFailed, path, relErr, "cannot resolve relative path")
		}
		target := filepath.Join(dstDir, base, rel)

		if fi.IsDir() {
			if mkErr := os.MkdirAll(target, fi.Mode().Perm()); mkErr != nil {
				return core.WrapError(core.ErrCopyFailed, path, mkErr, "cannot create directory")
			}
			return nil
		}

		// Walk follows lstat semantics for the entry type via os.Lstat
		linfo, lerr := os.Lstat(path)
		if lerr != nil {
			return core.WrapError(core.ErrCopyFailed, path, lerr, "cannot stat source")
		}
		if cpErr := r.copyEntry(path, target, linfo); cpErr != nil {
			return cpErr
		}
		rels = append(rels, filepath.Join(base, rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rels, nil
}

// copyEntry copies one filesystem entry: symlinks are recreated, regular
// files copied with their permission bits.
func (r *placeRun) copyEntry(src, dst string, info os.FileInfo) error {
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(src)
		if err != nil {
			return core.WrapError(core.ErrCopyFailed, src, err, "cannot read symlink")
		}
		if err := os.Symlink(target, dst); err != nil {
			return core.WrapError(core.ErrCopyFailed, src, err, "cannot recreate symlink")
		}
		r.fileDone(src)
		return nil
	}

	if err := r.copyFile(src, dst); err != nil {
		return err
	}
	return nil
}

func (r *placeRun) copyFile(src, dst string) (err error) {
	r.current = src

	sourceFile, err := os.Open(src)
	if err != nil {
		return core.WrapError(core.ErrCopyFailed, src, err, "cannot open source")
	}
	defer sourceFile.Close()

	info, err := sourceFile.Stat()
	if err != nil {
		return core.WrapError(core.ErrCopyFailed, src, err, "cannot stat source")
	}

	destFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return core.WrapError(core.ErrCopyFailed, dst, err, "cannot create destination")
	}
	defer func() {
		if cerr := destFile.Close(); cerr != nil && err == nil {
			err = core.WrapError(core.ErrCopyFailed, dst, cerr, "cannot close destination")
		}
	}()

	if _, err = io.Copy(io.MultiWriter(destFile, &progressWriter{run: r}), sourceFile); err != nil {
		return core.WrapError(core.ErrCopyFailed, src, err, "copy interrupted")
	}

	if err = destFile.Sync(); err != nil {
		return core.WrapError(core.ErrCopyFailed, dst, err, "cannot sync destination")
	}

	r.filesDone++
	r.emit()
	return nil
}

// progressWriter forwards written byte counts to the run's progress callback
type progressWriter struct {
	run *placeRun
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.run.bytes += int64(len(p))
	w.run.emit()
	return len(p), nil
}

// String implements fmt.Stringer for debug logging
func (p *Placed) String() string {
	return fmt.Sprintf("dir=%s exec=%s files=%d", p.Dir, p.ExecutablePath, len(p.AdditionalFiles))
}
