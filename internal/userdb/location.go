package userdb

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/ysy950803/userdbclean/internal/errors"
)

const (
	// InstallationFile is the installation descriptor kept in the user data dir.
	InstallationFile = "installation.yaml"
	syncDirName      = "sync"
)

// Installation holds the fields of installation.yaml the cleaner needs.
type Installation struct {
	InstallationID       string `mapstructure:"installation_id"`
	SyncDir              string `mapstructure:"sync_dir"`
	DistributionCodeName string `mapstructure:"distribution_code_name"`
}

// LoadInstallation reads an installation descriptor. Scalar fields are
// decoded weakly, so an unquoted numeric installation_id still yields a string.
func LoadInstallation(path string) (*Installation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ConfigurationMissing(path, err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.ConfigurationMissing(path, err)
	}
	var inst Installation
	if err := mapstructure.WeakDecode(raw, &inst); err != nil {
		return nil, errors.ConfigurationMissing(path, err)
	}
	inst.InstallationID = strings.TrimSpace(inst.InstallationID)
	inst.SyncDir = strings.TrimSpace(inst.SyncDir)
	return &inst, nil
}

// Locator is one step of a resolution chain.
type Locator struct {
	Name   string
	Locate func() (string, error)
}

// Resolver finds the storage root (user data dir) and the sync root.
type Resolver struct {
	// StorageDirs are tried in order; the first existing directory wins.
	StorageDirs []string
	// SyncDirHint is the sync dir configured by the host environment.
	SyncDirHint string
}

// NewResolver builds a Resolver that tries userDataDir before the
// platform default locations.
func NewResolver(userDataDir, syncDirHint string) *Resolver {
	dirs := make([]string, 0, 4)
	if d := strings.TrimSpace(userDataDir); d != "" {
		dirs = append(dirs, d)
	}
	dirs = append(dirs, DefaultUserDataDirs()...)
	return &Resolver{StorageDirs: dirs, SyncDirHint: strings.TrimSpace(syncDirHint)}
}

func (r *Resolver) storageLocators() []Locator {
	locators := make([]Locator, 0, len(r.StorageDirs))
	for i, dir := range r.StorageDirs {
		dir := dir
		locators = append(locators, Locator{
			Name:   fmt.Sprintf("candidate[%d]", i),
			Locate: func() (string, error) { return dir, nil },
		})
	}
	return locators
}

// ResolveStorageRoot returns the first existing candidate directory.
func (r *Resolver) ResolveStorageRoot() (string, error) {
	dir, err := resolve(r.storageLocators())
	if err != nil {
		return "", errors.NoStorageRoot(err)
	}
	return dir, nil
}

// SyncLocators returns the sync root resolution chain, most specific first:
// host hint, descriptor sync_dir, then <storageRoot>/sync/<installation_id>.
func (r *Resolver) SyncLocators(storageRoot string) []Locator {
	descriptor := filepath.Join(storageRoot, InstallationFile)
	load := sync.OnceValues(func() (*Installation, error) {
		return LoadInstallation(descriptor)
	})

	return []Locator{
		{
			Name: "environment",
			Locate: func() (string, error) {
				if r.SyncDirHint == "" {
					return "", fmt.Errorf("no sync dir configured")
				}
				return r.SyncDirHint, nil
			},
		},
		{
			Name: "installation.sync_dir",
			Locate: func() (string, error) {
				inst, err := load()
				if err != nil {
					return "", err
				}
				if inst.SyncDir == "" {
					return "", fmt.Errorf("sync_dir not set in %s", descriptor)
				}
				return NormalizeSyncDir(inst.SyncDir), nil
			},
		},
		{
			Name: "installation.installation_id",
			Locate: func() (string, error) {
				inst, err := load()
				if err != nil {
					return "", err
				}
				if inst.InstallationID == "" {
					return "", errors.MissingInstallationID(descriptor)
				}
				return filepath.Join(storageRoot, syncDirName, inst.InstallationID), nil
			},
		},
	}
}

// ResolveSyncRoot walks the sync chain for storageRoot. When every step
// fails the returned error matches errors.ErrNoSyncDirectory and wraps the
// individual step failures.
func (r *Resolver) ResolveSyncRoot(storageRoot string) (string, error) {
	dir, err := resolve(r.SyncLocators(storageRoot))
	if err != nil {
		return "", errors.NoSyncDirectory(err)
	}
	return dir, nil
}

func resolve(locators []Locator) (string, error) {
	var errs []error
	for _, l := range locators {
		dir, err := l.Locate()
		if err == nil {
			if err = checkDir(dir); err == nil {
				log.Debug().Str("source", l.Name).Str("dir", dir).Msg("directory resolved")
				return dir, nil
			}
		}
		log.Debug().Err(err).Str("source", l.Name).Msg("directory candidate rejected")
		errs = append(errs, fmt.Errorf("%s: %w", l.Name, err))
	}
	return "", errors.Join(errs...)
}

func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

var repeatedSeparators = regexp.MustCompile(`[\\/]{2,}`)

// NormalizeSyncDir collapses separators doubled by escaping in the
// descriptor, keeping a leading UNC prefix intact.
func NormalizeSyncDir(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	prefix := ""
	if strings.HasPrefix(p, `\\`) {
		prefix = `\\`
		p = strings.TrimLeft(p, `\`)
	}
	p = repeatedSeparators.ReplaceAllStringFunc(p, func(m string) string { return m[:1] })
	return filepath.Clean(prefix + p)
}

// DefaultUserDataDirs lists where the input method keeps its user data.
func DefaultUserDataDirs() []string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return []string{filepath.Join(appData, "Rime")}
		}
	case "darwin":
		if home != "" {
			return []string{filepath.Join(home, "Library", "Rime")}
		}
	default:
		if home != "" {
			return []string{
				filepath.Join(home, ".local", "share", "fcitx5", "rime"),
				filepath.Join(home, ".config", "ibus", "rime"),
				filepath.Join(home, ".config", "fcitx", "rime"),
			}
		}
	}
	return nil
}
