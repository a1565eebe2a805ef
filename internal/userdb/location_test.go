package userdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ysy950803/userdbclean/internal/errors"
)

func writeInstallation(t *testing.T, root, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, InstallationFile), []byte(content), 0o644))
}

func TestResolveStorageRootFirstExisting(t *testing.T) {
	existing := t.TempDir()
	r := &Resolver{StorageDirs: []string{filepath.Join(existing, "missing"), existing}}

	dir, err := r.ResolveStorageRoot()
	require.NoError(t, err)
	assert.Equal(t, existing, dir)
}

func TestResolveStorageRootNone(t *testing.T) {
	r := &Resolver{StorageDirs: []string{filepath.Join(t.TempDir(), "missing")}}
	_, err := r.ResolveStorageRoot()
	assert.True(t, errors.Is(err, errors.ErrNoStorageRoot))
}

func TestResolveSyncRootPrefersHint(t *testing.T) {
	root := t.TempDir()
	hint := t.TempDir()
	other := t.TempDir()
	writeInstallation(t, root, "installation_id: abc\nsync_dir: "+other+"\n")

	r := &Resolver{SyncDirHint: hint}
	dir, err := r.ResolveSyncRoot(root)
	require.NoError(t, err)
	assert.Equal(t, hint, dir)
}

func TestResolveSyncRootFromDescriptorSyncDir(t *testing.T) {
	root := t.TempDir()
	syncDir := t.TempDir()
	// doubled separators come from escaping in the descriptor
	writeInstallation(t, root, "installation_id: abc\nsync_dir: '"+filepath.Dir(syncDir)+"//"+filepath.Base(syncDir)+"'\n")

	r := &Resolver{SyncDirHint: filepath.Join(root, "not-there")}
	dir, err := r.ResolveSyncRoot(root)
	require.NoError(t, err)
	assert.Equal(t, syncDir, dir)
}

func TestResolveSyncRootFromInstallationID(t *testing.T) {
	root := t.TempDir()
	writeInstallation(t, root, "distribution_code_name: Weasel\ninstallation_id: 12345\n")
	expected := filepath.Join(root, "sync", "12345")
	require.NoError(t, os.MkdirAll(expected, 0o755))

	dir, err := (&Resolver{}).ResolveSyncRoot(root)
	require.NoError(t, err)
	assert.Equal(t, expected, dir)
}

func TestResolveSyncRootMissingInstallationID(t *testing.T) {
	root := t.TempDir()
	writeInstallation(t, root, "installation_id: ''\n")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sync"), 0o755))

	_, err := (&Resolver{}).ResolveSyncRoot(root)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNoSyncDirectory))
	assert.True(t, errors.Is(err, errors.ErrMissingInstallationID))
}

func TestResolveSyncRootMissingDescriptor(t *testing.T) {
	_, err := (&Resolver{}).ResolveSyncRoot(t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNoSyncDirectory))
	assert.True(t, errors.Is(err, errors.ErrConfigurationMissing))
}

func TestNormalizeSyncDir(t *testing.T) {
	assert.Equal(t, filepath.Clean("/data/rime/sync"), NormalizeSyncDir(" /data//rime///sync "))
	assert.Equal(t, "", NormalizeSyncDir("  "))
	assert.Equal(t, filepath.Clean(`D:\RimeSync`), NormalizeSyncDir(`D:\\RimeSync`))
}

func TestLoadInstallationWeakDecode(t *testing.T) {
	root := t.TempDir()
	writeInstallation(t, root, "installation_id: 42\nsync_dir: \"/x\"\nrime_version: 1.8.5\n")

	inst, err := LoadInstallation(filepath.Join(root, InstallationFile))
	require.NoError(t, err)
	assert.Equal(t, "42", inst.InstallationID)
	assert.Equal(t, "/x", inst.SyncDir)
}
