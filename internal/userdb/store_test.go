package userdb

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkdirs(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, os.MkdirAll(p, 0o755))
	}
}

func touch(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x\tx\tc=1\n"), 0o644))
	}
}

func names(stores []Store) []string {
	out := make([]string, 0, len(stores))
	for _, s := range stores {
		out = append(out, s.Name)
	}
	sort.Strings(out)
	return out
}

func TestFilterAllows(t *testing.T) {
	assert.True(t, NewFilter().Allows("anything"))
	assert.True(t, NewFilter("").Allows("anything"), "blank names are ignored")

	f := NewFilter("lua")
	assert.True(t, f.Allows("lua"))
	assert.False(t, f.Allows("Lua"))
	assert.False(t, f.Allows("lua*"))
	assert.False(t, f.Allows("pinyin"))
	assert.Equal(t, []string{"lua"}, f.Names())
}

func TestListFolderStores(t *testing.T) {
	root := t.TempDir()
	mkdirs(t,
		filepath.Join(root, "lua.userdb"),
		filepath.Join(root, "pinyin.userdb"),
		filepath.Join(root, ".userdb"),
		filepath.Join(root, "build"),
		filepath.Join(root, "nested", "deep.userdb"),
	)
	touch(t, filepath.Join(root, "fake.userdb"))

	all := ListFolderStores(root, NewFilter())
	assert.Equal(t, []string{"lua", "pinyin"}, names(all))
	for _, s := range all {
		assert.Equal(t, FolderStore, s.Kind)
	}

	only := ListFolderStores(root, NewFilter("lua"))
	require.Len(t, only, 1)
	assert.Equal(t, filepath.Join(root, "lua.userdb"), only[0].Path)
}

func TestListFolderStoresMissingRoot(t *testing.T) {
	assert.Empty(t, ListFolderStores(filepath.Join(t.TempDir(), "missing"), NewFilter()))
}

func TestListFileStoresRecursive(t *testing.T) {
	root := t.TempDir()
	touch(t,
		filepath.Join(root, "lua.userdb.txt"),
		filepath.Join(root, "install-a", "2024-01", "pinyin.userdb.txt"),
		filepath.Join(root, "install-b", "lua.userdb.txt.cache"),
		filepath.Join(root, "install-b", "notes.txt"),
	)
	mkdirs(t, filepath.Join(root, "dir.userdb.txt"))

	all := ListFileStores(root, NewFilter())
	assert.Equal(t, []string{"lua", "pinyin"}, names(all))

	only := ListFileStores(root, NewFilter("pinyin"))
	require.Len(t, only, 1)
	assert.Equal(t, filepath.Join(root, "install-a", "2024-01", "pinyin.userdb.txt"), only[0].Path)
	assert.Equal(t, FileStore, only[0].Kind)
}

func TestNestedStoreCompactsLikeRootStore(t *testing.T) {
	root := t.TempDir()
	content := "a\tx\tc=1\nb\ty\tc=0\n"
	touch(t, filepath.Join(root, "lua.userdb.txt"), filepath.Join(root, "one", "two", "pinyin.userdb.txt"))
	for _, p := range []string{filepath.Join(root, "lua.userdb.txt"), filepath.Join(root, "one", "two", "pinyin.userdb.txt")} {
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}

	for _, s := range ListFileStores(root, NewFilter()) {
		res, err := Compact(s)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Dropped, s.Path)
		data, err := os.ReadFile(s.Path)
		require.NoError(t, err)
		assert.Equal(t, "a\tx\tc=1\n", string(data))
	}
}

func TestPurgeRemovesFilesOnly(t *testing.T) {
	root := t.TempDir()
	store := Store{Name: "lua", Kind: FolderStore, Path: filepath.Join(root, "lua.userdb")}
	touch(t,
		filepath.Join(store.Path, "CURRENT"),
		filepath.Join(store.Path, "000001.ldb"),
		filepath.Join(store.Path, "LOG"),
	)
	mkdirs(t, filepath.Join(store.Path, "sub"))

	res, err := Purge(store)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Removed)
	assert.Equal(t, 0, res.Failed)

	entries, err := os.ReadDir(store.Path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "sub", entries[0].Name())
}

func TestPurgeMissingFolder(t *testing.T) {
	res, err := Purge(Store{Name: "x", Kind: FolderStore, Path: filepath.Join(t.TempDir(), "x.userdb")})
	assert.Error(t, err)
	require.NotNil(t, res)
	assert.Zero(t, res.Removed)
}

func skipWithoutPermissions(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions required")
	}
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
}

func TestListFileStoresFollowsSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := t.TempDir()
	other := t.TempDir()
	target := filepath.Join(other, "lua.userdb.txt")
	require.NoError(t, os.WriteFile(target, []byte("a\tb\tc=0\n"), 0o644))
	touch(t, filepath.Join(other, "d", "pinyin.userdb.txt"))

	link := filepath.Join(root, "lua.userdb.txt")
	require.NoError(t, os.Symlink(target, link))
	require.NoError(t, os.Symlink(filepath.Join(other, "d"), filepath.Join(root, "linked")))
	require.NoError(t, os.Symlink(root, filepath.Join(root, "loop")))
	require.NoError(t, os.Symlink(filepath.Join(other, "gone.userdb.txt"), filepath.Join(root, "dangling.userdb.txt")))

	stores := ListFileStores(root, NewFilter())
	require.Equal(t, []string{"lua", "pinyin"}, names(stores))

	var lua Store
	for _, s := range stores {
		if s.Name == "lua" {
			lua = s
		}
	}
	want, err := filepath.EvalSymlinks(target)
	require.NoError(t, err)
	assert.Equal(t, want, lua.Path)

	res, err := Compact(lua)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Dropped)

	info, err := os.Lstat(link)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink, "link is kept")
	data, err := os.ReadFile(link)
	require.NoError(t, err)
	assert.Empty(t, string(data))
}

func TestListFileStoresSkipsUnreadableDir(t *testing.T) {
	skipWithoutPermissions(t)
	root := t.TempDir()
	touch(t,
		filepath.Join(root, "locked", "lua.userdb.txt"),
		filepath.Join(root, "open", "pinyin.userdb.txt"),
		filepath.Join(root, "zz", "wubi.userdb.txt"),
	)
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	assert.Equal(t, []string{"pinyin", "wubi"}, names(ListFileStores(root, NewFilter())))
}

func TestPurgeCountsDeleteFailures(t *testing.T) {
	skipWithoutPermissions(t)
	root := t.TempDir()
	locked := filepath.Join(root, "lua.userdb")
	open := filepath.Join(root, "pinyin.userdb")
	touch(t,
		filepath.Join(locked, "CURRENT"),
		filepath.Join(locked, "LOCK"),
		filepath.Join(locked, "000001.log"),
		filepath.Join(open, "CURRENT"),
		filepath.Join(open, "LOCK"),
	)
	require.NoError(t, os.Chmod(locked, 0o555))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	res, err := Purge(Store{Name: "lua", Kind: FolderStore, Path: locked})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Failed, "every file is attempted")
	assert.Zero(t, res.Removed)

	res, err = Purge(Store{Name: "pinyin", Kind: FolderStore, Path: open})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Removed)
	assert.Zero(t, res.Failed)
}
