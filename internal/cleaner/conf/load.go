package conf

import (
	stderrors "errors"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/ysy950803/userdbclean/internal/deployer"
	"github.com/ysy950803/userdbclean/internal/errors"
)

const (
	EnvPrefix  = "USERDBCLEAN"
	ConfigName = "userdbclean"
)

// Defaults lists every key so that environment overrides are honoured
// even when the key is absent from the config file.
var Defaults = map[string]any{
	"user_data_dir":                           "",
	"shared_data_dir":                         "",
	"sync_dir":                                "",
	"work_dir":                                "",
	"userdb_cleaner.trigger_input":            DefaultTriggerInput,
	"userdb_cleaner.cleanup_userdb_list":      []string{},
	"userdb_cleaner.full_information_display": false,
	"userdb_cleaner.abort_on_presync_failure": false,
	"deployer.path":                           "",
	"deployer.timeout":                        deployer.DefaultTimeout,
	"deployer.pre_directives":                 []string{string(deployer.Sync)},
	"deployer.post_directives":                []string{string(deployer.Sync)},
	"deployer.wait_idle":                      true,
	"http.addr":                               DefaultHTTPAddr,
	"watch.trigger_file":                      DefaultTriggerFile,
	"history.enabled":                         true,
	"history.path":                            "",
}

// Load reads the configuration from path (a file or a directory) or from
// the default config dir, then applies USERDBCLEAN_* environment overrides.
// A missing config file is not an error.
func Load(path string) (*Config, *viper.Viper, error) {
	v := viper.New()
	for k, val := range Defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			v.SetConfigFile(path)
		} else {
			v.SetConfigName(ConfigName)
			v.SetConfigType("yaml")
			v.AddConfigPath(path)
		}
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultWorkDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, nil, errors.ConfigurationMissing(path, err)
		}
		log.Debug().Str("path", path).Msg("config file not found, using defaults")
	} else {
		log.Debug().Str("path", v.ConfigFileUsed()).Msg("config loaded")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, errors.ConfigurationMissing(v.ConfigFileUsed(), err)
	}
	cfg.Normalize()

	if _, err := cfg.PreDirectives(); err != nil {
		return nil, nil, err
	}
	if _, err := cfg.PostDirectives(); err != nil {
		return nil, nil, err
	}
	return &cfg, v, nil
}
