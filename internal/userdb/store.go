package userdb

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	// FolderSuffix names the binary (LevelDB) stores under the user data dir.
	FolderSuffix = ".userdb"
	// FileSuffix names the text snapshots under the sync dir.
	FileSuffix = ".userdb.txt"
)

type Kind int

const (
	FolderStore Kind = iota
	FileStore
)

func (k Kind) String() string {
	switch k {
	case FolderStore:
		return "folder"
	case FileStore:
		return "file"
	default:
		return "unknown"
	}
}

// Store identifies one logical user dictionary on disk.
type Store struct {
	Name string
	Kind Kind
	Path string
}

// Filter is the optional allow-list of store base names.
// An empty filter allows every store.
type Filter map[string]struct{}

func NewFilter(names ...string) Filter {
	f := make(Filter, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		f[name] = struct{}{}
	}
	return f
}

func (f Filter) Allows(name string) bool {
	if len(f) == 0 {
		return true
	}
	_, ok := f[name]
	return ok
}

func (f Filter) Names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// baseName strips suffix from name; ok is false when name does not
// carry the suffix or consists of the suffix alone.
func baseName(name, suffix string) (string, bool) {
	if len(name) <= len(suffix) || !strings.HasSuffix(name, suffix) {
		return "", false
	}
	return strings.TrimSuffix(name, suffix), true
}

// ListFolderStores returns the immediate child directories of root named
// <base>.userdb that pass filter.
func ListFolderStores(root string, filter Filter) []Store {
	entries, err := os.ReadDir(root)
	if err != nil {
		log.Error().Err(err).Str("dir", root).Msg("failed to read user data dir")
		if len(entries) == 0 {
			return nil
		}
	}

	stores := make([]Store, 0)
	for _, entry := range entries {
		path := filepath.Join(root, entry.Name())
		isDir := entry.IsDir()
		if entry.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil {
				log.Error().Err(err).Str("path", path).Msg("failed to stat userdb candidate")
				continue
			}
			isDir = info.IsDir()
		}
		if !isDir {
			continue
		}
		name, ok := baseName(entry.Name(), FolderSuffix)
		if !ok || !filter.Allows(name) {
			continue
		}
		stores = append(stores, Store{Name: name, Kind: FolderStore, Path: path})
	}

	log.Info().Int("count", len(stores)).Str("dir", root).Msg("found .userdb folders")
	return stores
}

// ListFileStores walks syncRoot recursively and returns every regular file
// named <base>.userdb.txt that passes filter. Symlinks are followed; a linked
// store is returned by its target path so that compaction replaces the
// target and keeps the link. Unreadable directories are logged and skipped
// without affecting their siblings.
func ListFileStores(syncRoot string, filter Filter) []Store {
	stores := make([]Store, 0)
	walkFileStores(syncRoot, filter, map[string]struct{}{}, &stores)

	log.Info().Int("count", len(stores)).Str("dir", syncRoot).Msg("found .userdb.txt files")
	return stores
}

// visited holds resolved directories so that link cycles end the descent.
func walkFileStores(dir string, filter Filter, visited map[string]struct{}, stores *[]Store) {
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		log.Error().Err(err).Str("dir", dir).Msg("failed to resolve sync dir entry")
		return
	}
	if _, seen := visited[real]; seen {
		return
	}
	visited[real] = struct{}{}

	// 读取出错时仍处理已读到的条目
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Error().Err(err).Str("dir", dir).Msg("failed to scan sync dir")
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		linked := entry.Type()&fs.ModeSymlink != 0
		mode := entry.Type()
		if linked {
			info, err := os.Stat(path)
			if err != nil {
				log.Error().Err(err).Str("path", path).Msg("failed to follow symlink")
				continue
			}
			mode = info.Mode().Type()
		}

		if mode.IsDir() {
			walkFileStores(path, filter, visited, stores)
			continue
		}
		name, ok := baseName(entry.Name(), FileSuffix)
		if !ok {
			continue
		}
		if !mode.IsRegular() {
			log.Warn().Str("path", path).Msg("skipping non-regular userdb.txt entry")
			continue
		}
		if !filter.Allows(name) {
			continue
		}
		if linked {
			target, err := filepath.EvalSymlinks(path)
			if err != nil {
				log.Error().Err(err).Str("path", path).Msg("failed to resolve linked store")
				continue
			}
			path = target
		}
		*stores = append(*stores, Store{Name: name, Kind: FileStore, Path: path})
	}
}
