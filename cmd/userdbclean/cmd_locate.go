package userdbclean

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ysy950803/userdbclean/internal/cleaner/conf"
	"github.com/ysy950803/userdbclean/internal/deployer"
	"github.com/ysy950803/userdbclean/internal/userdb"
)

func init() {
	rootCmd.AddCommand(locateCmd)
}

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Print the resolved user data and sync directories",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, _, err := conf.Load(ConfigPath)
		if err != nil {
			log.Err(err).Msg("failed to load configuration")
			return
		}

		r := userdb.NewResolver(cfg.UserDataDir, cfg.SyncDir)
		storage, err := r.ResolveStorageRoot()
		if err != nil {
			fmt.Printf("user data dir: not found (%v)\n", err)
			return
		}
		fmt.Printf("user data dir: %s\n", storage)

		if syncRoot, err := r.ResolveSyncRoot(storage); err != nil {
			fmt.Printf("sync dir:      not found (%v)\n", err)
		} else {
			fmt.Printf("sync dir:      %s\n", syncRoot)
		}

		if _, ok := deployer.New(cfg.DeployerConfig()).(deployer.Noop); ok {
			fmt.Println("deployer:      none")
		} else {
			fmt.Printf("deployer:      %s\n", cfg.Deployer.Path)
		}
	},
}
