package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/appstash/appstash/internal/bundle"
	"github.com/appstash/appstash/internal/config"
	"github.com/appstash/appstash/internal/core"
	"github.com/appstash/appstash/internal/desktop"
	"github.com/appstash/appstash/internal/registry"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testReporter records reporter calls without producing output
type testReporter struct {
	progress  []core.ProgressEvent
	successes []string
	warnings  []string
	failures  []string
}

func (r *testReporter) Progress(ev core.ProgressEvent) { r.progress = append(r.progress, ev) }
func (r *testReporter) Info(format string, args ...interface{}) {}
func (r *testReporter) Success(format string, args ...interface{}) {
	r.successes = append(r.successes, fmt.Sprintf(format, args...))
}
func (r *testReporter) Warn(format string, args ...interface{}) {
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}
func (r *testReporter) Failure(format string, args ...interface{}) {
	r.failures = append(r.failures, fmt.Sprintf(format, args...))
}

type testEnv struct {
	eng      *Engine
	reporter *testReporter
	cfg      *config.Config
	srcDir   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()

	cfg := &config.Config{}
	cfg.Paths.PackagesDirectory = filepath.Join(root, "AppImages")
	cfg.Paths.DesktopFilesDirectory = filepath.Join(root, "applications")
	cfg.Paths.RegistryFile = filepath.Join(root, "AppImages", "registry.json")

	log := zerolog.Nop()
	store, err := registry.Open(cfg.Paths.RegistryFile, cfg.Paths.PackagesDirectory, cfg.Paths.DesktopFilesDirectory, &log)
	require.NoError(t, err)

	reporter := &testReporter{}
	return &testEnv{
		eng:      New(cfg, store, nil, &log, reporter),
		reporter: reporter,
		cfg:      cfg,
		srcDir:   filepath.Join(root, "downloads"),
	}
}

// reopen loads a fresh engine on the same directories, as a new process would
func (env *testEnv) reopen(t *testing.T) *Engine {
	t.Helper()
	log := zerolog.Nop()
	store, err := registry.Open(env.cfg.Paths.RegistryFile, env.cfg.Paths.PackagesDirectory, env.cfg.Paths.DesktopFilesDirectory, &log)
	require.NoError(t, err)
	return New(env.cfg, store, nil, &log, env.reporter)
}

func (env *testEnv) writeSource(t *testing.T, name, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(env.srcDir, 0755))
	path := filepath.Join(env.srcDir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func (env *testEnv) installRequest(t *testing.T, id string) core.InstallRequest {
	t.Helper()
	exe := env.writeSource(t, id+".sh", "#!/bin/sh\necho "+id+"\n")
	return core.InstallRequest{
		ID:             id,
		Name:           "App " + id,
		ExecutablePath: exe,
	}
}

func TestInstall(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := env.installRequest(t, "editor")
	req.Comment = "Edits text"
	req.Categories = []string{"Utility"}

	rec, err := env.eng.Install(ctx, req)
	require.NoError(t, err)

	// Files live under the per-package directory with the exec bit set
	installedExec := filepath.Join(env.cfg.Paths.PackagesDirectory, "editor", "editor.sh")
	info, err := os.Stat(installedExec)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0111)

	// The desktop entry points at the installed copy, not the source
	entryPath := desktop.EntryPath(env.cfg.Paths.DesktopFilesDirectory, "editor")
	f, err := os.Open(entryPath)
	require.NoError(t, err)
	defer f.Close()
	entry, err := desktop.Parse(f)
	require.NoError(t, err)
	assert.Equal(t, installedExec, entry.Exec)
	assert.Equal(t, "App editor", entry.Name)

	// The record survives a reload from disk
	fresh := env.reopen(t)
	got, ok := fresh.Store().Get("editor")
	require.True(t, ok)
	assert.Equal(t, rec.Name, got.Name)
	assert.Equal(t, core.SourceKindScript, got.Kind)
	assert.Equal(t, filepath.Join(env.srcDir, "editor.sh"), got.SourceExecutable)
}

func TestInstallDuplicateID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.eng.Install(ctx, env.installRequest(t, "editor"))
	require.NoError(t, err)

	rec, _ := env.eng.Store().Get("editor")

	_, err = env.eng.Install(ctx, env.installRequest(t, "editor"))
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.ErrDuplicateID))

	// The existing install is untouched
	got, ok := env.eng.Store().Get("editor")
	require.True(t, ok)
	assert.Equal(t, rec, got)
	assert.FileExists(t, filepath.Join(env.cfg.Paths.PackagesDirectory, "editor", "editor.sh"))
}

func TestInstallReplace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.eng.Install(ctx, env.installRequest(t, "editor"))
	require.NoError(t, err)

	req := env.installRequest(t, "editor")
	req.Name = "New Editor"
	req.Replace = true

	rec, err := env.eng.Install(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "New Editor", rec.Name)

	got, ok := env.eng.Store().Get("editor")
	require.True(t, ok)
	assert.Equal(t, "New Editor", got.Name)
	assert.Equal(t, 1, env.eng.Store().Len())
}

func TestInstallValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*core.InstallRequest)
	}{
		{"bad id", func(r *core.InstallRequest) { r.ID = "my app!" }},
		{"empty id", func(r *core.InstallRequest) { r.ID = "" }},
		{"empty name", func(r *core.InstallRequest) { r.Name = "" }},
		{"missing executable", func(r *core.InstallRequest) { r.ExecutablePath = "/no/such/file" }},
		{"executable is a directory", func(r *core.InstallRequest) { r.ExecutablePath = env.srcDir }},
		{"missing additional file", func(r *core.InstallRequest) { r.AdditionalFiles = []string{"/no/such/extra"} }},
		{"missing icon", func(r *core.InstallRequest) { r.IconPath = "/no/such/icon.png" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := env.installRequest(t, "candidate")
			tt.mutate(&req)

			_, err := env.eng.Install(ctx, req)
			require.Error(t, err)
			assert.True(t, core.IsKind(err, core.ErrValidation))

			// Validation failures leave no trace
			assert.NoDirExists(t, filepath.Join(env.cfg.Paths.PackagesDirectory, "candidate"))
			assert.Equal(t, 0, env.eng.Store().Len())
		})
	}
}

func TestInstallRollsBackWhenDesktopEntryFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// A regular file where the desktop directory should be makes entry
	// creation fail after the package files were already placed
	require.NoError(t, os.MkdirAll(filepath.Dir(env.cfg.Paths.DesktopFilesDirectory), 0755))
	require.NoError(t, os.WriteFile(env.cfg.Paths.DesktopFilesDirectory, []byte("in the way"), 0644))

	_, err := env.eng.Install(ctx, env.installRequest(t, "editor"))
	require.Error(t, err)

	// Placement was rolled back, nothing was recorded
	assert.NoDirExists(t, filepath.Join(env.cfg.Paths.PackagesDirectory, "editor"))
	assert.Equal(t, 0, env.eng.Store().Len())
	assert.NoFileExists(t, env.cfg.Paths.RegistryFile)
}

func TestTwoInstancesShareOneRegistry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Both engines load the registry while it is still empty, as two
	// independently launched processes would
	second := env.reopen(t)

	_, err := env.eng.Install(ctx, env.installRequest(t, "foo"))
	require.NoError(t, err)

	// The second instance's snapshot predates foo; its save must not
	// erase foo's record
	_, err = second.Install(ctx, env.installRequest(t, "bar"))
	require.NoError(t, err)

	fresh := env.reopen(t)
	_, ok := fresh.Store().Get("foo")
	assert.True(t, ok)
	_, ok = fresh.Store().Get("bar")
	assert.True(t, ok)

	// Same for deinstall: a stale snapshot must pick up foo before removing bar
	require.NoError(t, env.eng.Deinstall(ctx, "bar"))

	fresh = env.reopen(t)
	_, ok = fresh.Store().Get("foo")
	assert.True(t, ok)
	_, ok = fresh.Store().Get("bar")
	assert.False(t, ok)
	assert.DirExists(t, filepath.Join(env.cfg.Paths.PackagesDirectory, "foo"))
}

func TestDeinstall(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.eng.Install(ctx, env.installRequest(t, "editor"))
	require.NoError(t, err)

	require.NoError(t, env.eng.Deinstall(ctx, "editor"))

	assert.NoDirExists(t, filepath.Join(env.cfg.Paths.PackagesDirectory, "editor"))
	assert.NoFileExists(t, desktop.EntryPath(env.cfg.Paths.DesktopFilesDirectory, "editor"))

	fresh := env.reopen(t)
	_, ok := fresh.Store().Get("editor")
	assert.False(t, ok)
}

func TestDeinstallIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.eng.Install(ctx, env.installRequest(t, "editor"))
	require.NoError(t, err)

	require.NoError(t, env.eng.Deinstall(ctx, "editor"))
	assert.NoError(t, env.eng.Deinstall(ctx, "editor"))

	// Never-installed IDs are also fine
	assert.NoError(t, env.eng.Deinstall(ctx, "never-installed"))
}

func TestDeinstallCleansLeftovers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// A directory without a record, as an interrupted install leaves behind
	leftover := filepath.Join(env.cfg.Paths.PackagesDirectory, "half-done")
	require.NoError(t, os.MkdirAll(leftover, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(leftover, "file"), []byte("x"), 0644))

	orphans, err := env.eng.Leftovers()
	require.NoError(t, err)
	assert.Equal(t, []string{"half-done"}, orphans)

	require.NoError(t, env.eng.Deinstall(ctx, "half-done"))
	assert.NoDirExists(t, leftover)

	orphans, err = env.eng.Leftovers()
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestDeinstallRejectsBadID(t *testing.T) {
	env := newTestEnv(t)

	err := env.eng.Deinstall(context.Background(), "../escape")
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.ErrValidation))
}

func TestBackup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.eng.Install(ctx, env.installRequest(t, "alpha"))
	require.NoError(t, err)
	_, err = env.eng.Install(ctx, env.installRequest(t, "bravo"))
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "backup.json")
	b, warnings, err := env.eng.Backup(ctx, core.BackupRequest{Destination: dest})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Len(t, b.Packages, 2)

	// The bundle file round-trips and records the original sources
	got, err := bundle.Read(dest)
	require.NoError(t, err)
	require.Len(t, got.Packages, 2)
	assert.Equal(t, filepath.Join(env.srcDir, "alpha.sh"), got.Packages[0].SourceExecutable)
}

func TestBackupSelectedIDs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.eng.Install(ctx, env.installRequest(t, "alpha"))
	require.NoError(t, err)
	_, err = env.eng.Install(ctx, env.installRequest(t, "bravo"))
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "backup.json")
	b, _, err := env.eng.Backup(ctx, core.BackupRequest{IDs: []string{"bravo"}, Destination: dest})
	require.NoError(t, err)
	require.Len(t, b.Packages, 1)
	assert.Equal(t, "bravo", b.Packages[0].ID)

	_, _, err = env.eng.Backup(ctx, core.BackupRequest{IDs: []string{"unknown"}, Destination: dest})
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.ErrNotFound))
}

func TestBackupWarnsOnUnreachableSource(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := env.installRequest(t, "alpha")
	_, err := env.eng.Install(ctx, req)
	require.NoError(t, err)

	// The source disappearing must not fail the backup
	require.NoError(t, os.Remove(req.ExecutablePath))

	dest := filepath.Join(t.TempDir(), "backup.json")
	b, warnings, err := env.eng.Backup(ctx, core.BackupRequest{Destination: dest})
	require.NoError(t, err)
	assert.Len(t, b.Packages, 1)

	require.Len(t, warnings, 1)
	assert.Equal(t, "alpha", warnings[0].ID)
	assert.True(t, core.IsKind(warnings[0].Err, core.ErrSourceUnreachable))
}

func TestBackupRequiresDestination(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.eng.Backup(context.Background(), core.BackupRequest{})
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.ErrValidation))
}

func TestReinstall(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.eng.Install(ctx, env.installRequest(t, "alpha"))
	require.NoError(t, err)
	_, err = env.eng.Install(ctx, env.installRequest(t, "bravo"))
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "backup.json")
	b, _, err := env.eng.Backup(ctx, core.BackupRequest{Destination: dest})
	require.NoError(t, err)

	// Wipe the installed set, then restore it from the bundle
	require.NoError(t, env.eng.Deinstall(ctx, "alpha"))
	require.NoError(t, env.eng.Deinstall(ctx, "bravo"))

	results := env.eng.Reinstall(ctx, b, false)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.NoError(t, res.Err)
	}

	assert.Equal(t, 2, env.eng.Store().Len())
	assert.FileExists(t, filepath.Join(env.cfg.Paths.PackagesDirectory, "alpha", "alpha.sh"))
	assert.FileExists(t, desktop.EntryPath(env.cfg.Paths.DesktopFilesDirectory, "bravo"))
}

func TestReinstallSkipsUnreachableSources(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	reqAlpha := env.installRequest(t, "alpha")
	_, err := env.eng.Install(ctx, reqAlpha)
	require.NoError(t, err)
	_, err = env.eng.Install(ctx, env.installRequest(t, "bravo"))
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "backup.json")
	b, _, err := env.eng.Backup(ctx, core.BackupRequest{Destination: dest})
	require.NoError(t, err)

	require.NoError(t, env.eng.Deinstall(ctx, "alpha"))
	require.NoError(t, env.eng.Deinstall(ctx, "bravo"))

	// alpha's source moved away; bravo must still come back
	require.NoError(t, os.Remove(reqAlpha.ExecutablePath))

	results := env.eng.Reinstall(ctx, b, false)
	require.Len(t, results, 2)

	byID := map[string]core.ReinstallResult{}
	for _, res := range results {
		byID[res.ID] = res
	}

	require.Error(t, byID["alpha"].Err)
	assert.True(t, core.IsKind(byID["alpha"].Err, core.ErrSourceUnreachable))
	assert.NoError(t, byID["bravo"].Err)

	_, ok := env.eng.Store().Get("alpha")
	assert.False(t, ok)
	_, ok = env.eng.Store().Get("bravo")
	assert.True(t, ok)
}

func TestReinstallWithReplace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.eng.Install(ctx, env.installRequest(t, "alpha"))
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "backup.json")
	b, _, err := env.eng.Backup(ctx, core.BackupRequest{Destination: dest})
	require.NoError(t, err)

	// Still installed: without replace it collides, with replace it succeeds
	results := env.eng.Reinstall(ctx, b, false)
	require.Len(t, results, 1)
	assert.True(t, core.IsKind(results[0].Err, core.ErrDuplicateID))

	results = env.eng.Reinstall(ctx, b, true)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 1, env.eng.Store().Len())
}
