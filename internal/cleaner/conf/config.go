package conf

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/ysy950803/userdbclean/internal/deployer"
)

const (
	DefaultTriggerInput = "/del"
	DefaultHTTPAddr     = "127.0.0.1:5031"
	DefaultTriggerFile  = "userdb_cleaner.trigger"
	AppName             = "userdbclean"
)

// CleanerConfig mirrors the userdb_cleaner section of the input method's
// own configuration.
type CleanerConfig struct {
	TriggerInput           string   `mapstructure:"trigger_input" json:"trigger_input"`
	CleanupUserdbList      []string `mapstructure:"cleanup_userdb_list" json:"cleanup_userdb_list"`
	FullInformationDisplay bool     `mapstructure:"full_information_display" json:"full_information_display"`
	AbortOnPresyncFailure  bool     `mapstructure:"abort_on_presync_failure" json:"abort_on_presync_failure"`
}

type DeployerConfig struct {
	Path           string        `mapstructure:"path" json:"path"`
	Timeout        time.Duration `mapstructure:"timeout" json:"timeout"`
	PreDirectives  []string      `mapstructure:"pre_directives" json:"pre_directives"`
	PostDirectives []string      `mapstructure:"post_directives" json:"post_directives"`
	WaitIdle       bool          `mapstructure:"wait_idle" json:"wait_idle"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr" json:"addr"`
}

type WatchConfig struct {
	TriggerFile string `mapstructure:"trigger_file" json:"trigger_file"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Path    string `mapstructure:"path" json:"path"`
}

// Config is the complete runtime configuration.
type Config struct {
	UserDataDir   string         `mapstructure:"user_data_dir" json:"user_data_dir"`
	SharedDataDir string         `mapstructure:"shared_data_dir" json:"shared_data_dir"`
	SyncDir       string         `mapstructure:"sync_dir" json:"sync_dir"`
	WorkDir       string         `mapstructure:"work_dir" json:"work_dir"`
	Cleaner       CleanerConfig  `mapstructure:"userdb_cleaner" json:"userdb_cleaner"`
	Deployer      DeployerConfig `mapstructure:"deployer" json:"deployer"`
	HTTP          HTTPConfig     `mapstructure:"http" json:"http"`
	Watch         WatchConfig    `mapstructure:"watch" json:"watch"`
	History       HistoryConfig  `mapstructure:"history" json:"history"`
}

// Normalize trims user supplied values and fills in derived defaults.
func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.UserDataDir = strings.TrimSpace(c.UserDataDir)
	c.SharedDataDir = strings.TrimSpace(c.SharedDataDir)
	c.SyncDir = strings.TrimSpace(c.SyncDir)
	c.WorkDir = strings.TrimSpace(c.WorkDir)
	if c.WorkDir == "" {
		c.WorkDir = DefaultWorkDir()
	}

	// 触发串必须精确匹配，只去掉首尾空白
	c.Cleaner.TriggerInput = strings.TrimSpace(c.Cleaner.TriggerInput)
	if c.Cleaner.TriggerInput == "" {
		c.Cleaner.TriggerInput = DefaultTriggerInput
	}
	list := make([]string, 0, len(c.Cleaner.CleanupUserdbList))
	for _, name := range c.Cleaner.CleanupUserdbList {
		if name = strings.TrimSpace(name); name != "" {
			list = append(list, name)
		}
	}
	c.Cleaner.CleanupUserdbList = list

	c.Deployer.Path = strings.TrimSpace(c.Deployer.Path)
	if c.Deployer.Path == "" && c.SharedDataDir != "" && runtime.GOOS == "windows" {
		c.Deployer.Path = filepath.Join(c.SharedDataDir, deployer.WindowsDeployer)
	}
	if c.Deployer.Timeout <= 0 {
		c.Deployer.Timeout = deployer.DefaultTimeout
	}

	c.HTTP.Addr = strings.TrimSpace(c.HTTP.Addr)
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
	c.Watch.TriggerFile = strings.TrimSpace(c.Watch.TriggerFile)
	if c.Watch.TriggerFile == "" {
		c.Watch.TriggerFile = DefaultTriggerFile
	}
	c.History.Path = strings.TrimSpace(c.History.Path)
	if c.History.Path == "" {
		c.History.Path = filepath.Join(c.WorkDir, "history.db")
	}
}

// PreDirectives parses the directives run before maintenance.
func (c *Config) PreDirectives() ([]deployer.Directive, error) {
	return deployer.ParseDirectives(c.Deployer.PreDirectives)
}

// PostDirectives parses the directives run after maintenance.
func (c *Config) PostDirectives() ([]deployer.Directive, error) {
	return deployer.ParseDirectives(c.Deployer.PostDirectives)
}

func (c *Config) DeployerConfig() deployer.Config {
	return deployer.Config{
		Path:     c.Deployer.Path,
		Timeout:  c.Deployer.Timeout,
		WaitIdle: c.Deployer.WaitIdle,
	}
}

// DefaultWorkDir is where logs and run history live.
func DefaultWorkDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, AppName)
	}
	return filepath.Join(os.TempDir(), AppName)
}
