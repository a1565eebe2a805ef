package userdb

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/ysy950803/userdbclean/internal/errors"
)

// PurgeResult counts the artifacts removed from one folder store.
type PurgeResult struct {
	Store   Store
	Removed int
	Failed  int
}

// Purge deletes every immediate child file of a folder store, keeping the
// directory itself. Deletion failures are logged and counted; the remaining
// files are still processed.
func Purge(store Store) (*PurgeResult, error) {
	if store.Kind != FolderStore {
		return nil, errors.InvalidArgument("%s is not a folder store", store.Path)
	}

	result := &PurgeResult{Store: store}
	entries, err := os.ReadDir(store.Path)
	if err != nil {
		log.Error().Err(err).Str("path", store.Path).Msg("failed to list userdb folder")
		if len(entries) == 0 {
			return result, errors.StoreUnreadable(store.Path, err)
		}
	}

	log.Info().Str("path", store.Path).Msg("processing folder")
	for _, entry := range entries {
		path := filepath.Join(store.Path, entry.Name())
		if entry.IsDir() {
			log.Debug().Str("path", path).Msg("skipping nested directory")
			continue
		}
		log.Debug().Str("path", path).Msg("deleting file")
		if err := os.Remove(path); err != nil {
			log.Error().Err(errors.DeleteFailed(path, err)).Msg("failed to delete userdb artifact")
			result.Failed++
			continue
		}
		result.Removed++
	}
	return result, nil
}
