package userdbclean

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ysy950803/userdbclean/internal/cleaner"
	"github.com/ysy950803/userdbclean/internal/cleaner/conf"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(consoleCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP and trigger file interfaces",
	Run: func(cmd *cobra.Command, args []string) {
		if err := serve(cleaner.RunModeHeadless); err != nil {
			log.Err(err).Msg("failed to start server")
		}
	},
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Run with the console interface",
	Run: func(cmd *cobra.Command, args []string) {
		if err := serve(cleaner.RunModeConsole); err != nil {
			log.Err(err).Msg("failed to start console")
		}
	},
}

func serve(mode cleaner.RunMode) error {
	if mode == cleaner.RunModeConsole {
		// 先读取配置以确定日志目录
		workDir := ""
		if cfg, _, err := conf.Load(ConfigPath); err == nil {
			workDir = cfg.WorkDir
		}
		initTuiLog(workDir)
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()
	return s.m.Serve(mode)
}
