package userdb

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ysy950803/userdbclean/internal/errors"
)

// CacheSuffix is appended to a file store path to name its scratch file.
const CacheSuffix = ".cache"

const bufSize = 64 * 1024

// CompactionResult describes one compacted file store.
type CompactionResult struct {
	Store        Store
	Examined     int
	Kept         int
	Dropped      int
	DroppedTexts []string
}

// Compact rewrites a file store keeping only entries with a positive weight.
//
// Kept lines are streamed verbatim into <path>.cache, which then replaces the
// store in a single rename. Until that rename the original file is untouched,
// so any failure leaves the store exactly as it was and returns a
// StoreUnreadable error with no partial result.
func Compact(store Store) (*CompactionResult, error) {
	if store.Kind != FileStore {
		return nil, errors.InvalidArgument("%s is not a file store", store.Path)
	}

	src, err := os.Open(store.Path)
	if err != nil {
		return nil, errors.StoreUnreadable(store.Path, err)
	}
	defer src.Close()

	perm := os.FileMode(0o644)
	if info, err := src.Stat(); err == nil {
		perm = info.Mode().Perm()
	}

	tmpPath := store.Path + CacheSuffix
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return nil, errors.StoreUnreadable(store.Path, err)
	}

	result := &CompactionResult{Store: store}
	if err := compactStream(src, tmp, result); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return nil, errors.StoreUnreadable(store.Path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return nil, errors.StoreUnreadable(store.Path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return nil, errors.StoreUnreadable(store.Path, err)
	}
	// Windows 下替换前必须先关闭源文件
	_ = src.Close()

	if err := replaceFile(tmpPath, store.Path); err != nil {
		_ = os.Remove(tmpPath)
		return nil, errors.StoreUnreadable(store.Path, err)
	}
	_ = syncDir(filepath.Dir(store.Path))

	log.Info().
		Str("store", store.Name).
		Str("path", store.Path).
		Int("kept", result.Kept).
		Int("dropped", result.Dropped).
		Msg("compacted userdb file")
	return result, nil
}

// compactStream copies the lines of r that hold a valid weight into w and
// records every dropped line in res. Empty lines are discarded uncounted.
func compactStream(r io.Reader, w io.Writer, res *CompactionResult) error {
	br := bufio.NewReaderSize(r, bufSize)
	bw := bufio.NewWriterSize(w, bufSize)

	for {
		line, readErr := br.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return readErr
		}
		if content := strings.TrimRight(line, "\r\n"); content != "" {
			res.Examined++
			if Valid(ParseWeight(content)) {
				if _, err := bw.WriteString(line); err != nil {
					return err
				}
				res.Kept++
			} else {
				res.Dropped++
				res.DroppedTexts = append(res.DroppedTexts, DisplayText(content))
			}
		}
		if readErr == io.EOF {
			break
		}
	}
	return bw.Flush()
}
