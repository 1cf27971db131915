package lsp

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pv1Overlay = `
name = "site"

[[segments]]
name = "PV1"

[segments.fields.2]
allowed_values = [["I", "Inpatient"], ["O", "Outpatient"]]
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func startWatcher(t *testing.T, root string) (*Watcher, *Workspace) {
	t.Helper()
	w := NewWorkspace(nil, Config{})
	watcher := NewWatcher(nil, w)
	require.NoError(t, watcher.Start([]string{root}))
	t.Cleanup(watcher.Stop)
	return watcher, w
}

func eventuallyGeneration(t *testing.T, w *Workspace, after uint64) {
	t.Helper()
	require.Eventually(t, func() bool {
		return w.Registry().Snapshot().Generation > after
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatcherInitialScan(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "nested", "dir", "site.hl7v.toml"), pv1Overlay)
	writeFile(t, filepath.Join(root, "not-a-schema.toml"), "name = \"ignored\"\n")

	_, w := startWatcher(t, root)

	table := w.Registry().Snapshot().AllowedValues("PV1", 2)
	require.NotNil(t, table)
	assert.True(t, table.Workspace)
	assert.Len(t, table.Entries, 2)
	assert.Equal(t, 1, w.Registry().OverlayCount(), "non-schema files are not loaded")
}

func TestWatcherCreateAndModify(t *testing.T) {
	root := t.TempDir()
	_, w := startWatcher(t, root)

	gen := w.Registry().Snapshot().Generation
	writeFile(t, filepath.Join(root, "site.hl7v.toml"), pv1Overlay)
	eventuallyGeneration(t, w, gen)
	require.NotNil(t, w.Registry().Snapshot().AllowedValues("PV1", 2))

	// Modify: the table is replaced wholesale.
	gen = w.Registry().Snapshot().Generation
	writeFile(t, filepath.Join(root, "site.hl7v.toml"), `
[[segments]]
name = "PV1"

[segments.fields.2]
allowed_values = [["E", "Emergency"]]
`)
	eventuallyGeneration(t, w, gen)
	require.Eventually(t, func() bool {
		table := w.Registry().Snapshot().AllowedValues("PV1", 2)
		return table != nil && len(table.Entries) == 1 && table.Entries[0].Code == "E"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatcherDelete(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "site.hl7v.toml")
	writeFile(t, path, pv1Overlay)

	_, w := startWatcher(t, root)
	require.NotNil(t, w.Registry().Snapshot().AllowedValues("PV1", 2))

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool {
		table := w.Registry().Snapshot().AllowedValues("PV1", 2)
		return table == nil || !table.Workspace
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatcherBadFileKeepsPreviousVersion(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "site.hl7v.toml")
	writeFile(t, path, pv1Overlay)

	_, w := startWatcher(t, root)
	require.NotNil(t, w.Registry().Snapshot().AllowedValues("PV1", 2))

	// A parse failure leaves the previous overlay in place.
	writeFile(t, path, "this is [not toml")
	time.Sleep(3 * watcherDebounce)

	table := w.Registry().Snapshot().AllowedValues("PV1", 2)
	require.NotNil(t, table)
	assert.Len(t, table.Entries, 2)
}

func TestWatcherNewDirectoryIsWatched(t *testing.T) {
	root := t.TempDir()
	_, w := startWatcher(t, root)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	// Give the watcher a beat to register the new directory.
	time.Sleep(100 * time.Millisecond)

	gen := w.Registry().Snapshot().Generation
	writeFile(t, filepath.Join(root, "sub", "x.hl7v.toml"), pv1Overlay)
	eventuallyGeneration(t, w, gen)
	assert.NotNil(t, w.Registry().Snapshot().AllowedValues("PV1", 2))
}
