package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/appstash/appstash/internal/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *zerolog.Logger {
	log := zerolog.Nop()
	return &log
}

func testRecord(id string) core.PackageRecord {
	return core.PackageRecord{
		ID:               id,
		Name:             "Test " + id,
		ExecutablePath:   "run.sh",
		Kind:             core.SourceKindScript,
		SourceExecutable: "/tmp/src/" + id,
		InstallDate:      time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(
		filepath.Join(dir, "registry.json"),
		filepath.Join(dir, "packages"),
		filepath.Join(dir, "applications"),
		testLogger(),
	)
	require.NoError(t, err)
	return store, dir
}

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	store, dir := openTestStore(t)

	assert.Equal(t, 0, store.Len())
	assert.Equal(t, filepath.Join(dir, "packages"), store.PackagesDirectory())
	assert.Equal(t, filepath.Join(dir, "applications"), store.DesktopFilesDirectory())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, dir := openTestStore(t)

	rec := testRecord("app-one")
	rec.Categories = []string{"Utility", "Development"}
	rec.Keywords = []string{"test"}
	rec.AdditionalFiles = []string{"lib/helper.so"}
	rec.Terminal = true

	require.NoError(t, store.Put(rec, false))
	require.NoError(t, store.Put(testRecord("app-two"), false))
	require.NoError(t, store.Save())

	reloaded, err := Open(store.Path(), "", "", testLogger())
	require.NoError(t, err)

	assert.Equal(t, 2, reloaded.Len())
	assert.Equal(t, filepath.Join(dir, "packages"), reloaded.PackagesDirectory())

	got, ok := reloaded.Get("app-one")
	require.True(t, ok)
	assert.Equal(t, rec, got)
}

func TestOpenCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Open(path, "", "", testLogger())
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.ErrCorruptRegistry))
	assert.Contains(t, err.Error(), path)
}

func TestOpenMismatchedID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.json")
	content := `{"packages": {"app-a": {"id": "app-b", "name": "A"}}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := Open(path, "", "", testLogger())
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.ErrCorruptRegistry))
}

func TestPutDuplicate(t *testing.T) {
	store, _ := openTestStore(t)

	require.NoError(t, store.Put(testRecord("app"), false))

	err := store.Put(testRecord("app"), false)
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.ErrDuplicateID))

	// Explicit replace succeeds
	updated := testRecord("app")
	updated.Name = "Updated"
	require.NoError(t, store.Put(updated, true))

	got, ok := store.Get("app")
	require.True(t, ok)
	assert.Equal(t, "Updated", got.Name)
}

func TestRemove(t *testing.T) {
	store, _ := openTestStore(t)
	require.NoError(t, store.Put(testRecord("app"), false))

	require.NoError(t, store.Remove("app"))
	assert.Equal(t, 0, store.Len())

	err := store.Remove("app")
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.ErrNotFound))
}

func TestListSorted(t *testing.T) {
	store, _ := openTestStore(t)
	require.NoError(t, store.Put(testRecord("charlie"), false))
	require.NoError(t, store.Put(testRecord("alpha"), false))
	require.NoError(t, store.Put(testRecord("bravo"), false))

	records := store.List()
	require.Len(t, records, 3)
	assert.Equal(t, "alpha", records[0].ID)
	assert.Equal(t, "bravo", records[1].ID)
	assert.Equal(t, "charlie", records[2].ID)
}

func TestSaveIsAtomic(t *testing.T) {
	store, dir := openTestStore(t)
	require.NoError(t, store.Put(testRecord("app"), false))
	require.NoError(t, store.Save())

	// No temp files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"registry.json"}, names)
}

func TestReloadPicksUpOtherInstanceSaves(t *testing.T) {
	store, dir := openTestStore(t)

	other, err := Open(store.Path(), filepath.Join(dir, "packages"), filepath.Join(dir, "applications"), testLogger())
	require.NoError(t, err)
	require.NoError(t, other.Put(testRecord("theirs"), false))
	require.NoError(t, other.Save())

	// The first store's snapshot predates the save
	_, ok := store.Get("theirs")
	assert.False(t, ok)

	require.NoError(t, store.Reload())
	_, ok = store.Get("theirs")
	assert.True(t, ok)
}

func TestReloadMissingFileEmpties(t *testing.T) {
	store, _ := openTestStore(t)
	require.NoError(t, store.Put(testRecord("app"), false))

	// No file on disk yet, so a reload discards the unsaved record but
	// keeps the configured directories
	require.NoError(t, store.Reload())
	assert.Equal(t, 0, store.Len())
	assert.NotEmpty(t, store.PackagesDirectory())
}

func TestOrphans(t *testing.T) {
	store, dir := openTestStore(t)
	pkgDir := filepath.Join(dir, "packages")

	require.NoError(t, os.MkdirAll(filepath.Join(pkgDir, "recorded"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(pkgDir, "leftover"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "stray-file"), []byte("x"), 0644))

	require.NoError(t, store.Put(testRecord("recorded"), false))

	orphans, err := store.Orphans()
	require.NoError(t, err)
	assert.Equal(t, []string{"leftover"}, orphans)
}

func TestOrphansMissingDirectory(t *testing.T) {
	store, _ := openTestStore(t)

	orphans, err := store.Orphans()
	require.NoError(t, err)
	assert.Empty(t, orphans)
}
