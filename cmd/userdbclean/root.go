package userdbclean

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ysy950803/userdbclean/internal/cleaner"
	"github.com/ysy950803/userdbclean/internal/cleaner/conf"
	"github.com/ysy950803/userdbclean/internal/history"
)

func init() {
	// windows only
	cobra.MousetrapHelpText = ""

	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "debug")
	rootCmd.PersistentFlags().StringVarP(&ConfigPath, "config", "c", "", "config file or directory")
	rootCmd.Flags().BoolVar(&Console, "console", false, "run with console interface")
	rootCmd.PersistentPreRun = initLog
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Err(err).Msg("command execution failed")
	}
}

var rootCmd = &cobra.Command{
	Use:     "userdbclean",
	Short:   "userdbclean",
	Long:    `userdbclean removes invalid entries from Rime user dictionaries`,
	Example: `userdbclean serve`,
	Args:    cobra.MinimumNArgs(0),
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	Run: Root,
}

// Root serves the HTTP and file triggers, or the console UI with --console.
func Root(cmd *cobra.Command, args []string) {
	mode := cleaner.RunModeHeadless
	if Console {
		mode = cleaner.RunModeConsole
	}
	if err := serve(mode); err != nil {
		log.Err(err).Msg("failed to run userdbclean")
	}
}

// session bundles what every subcommand needs.
type session struct {
	conf   *conf.Config
	ledger *history.Ledger
	m      *cleaner.Manager
}

func openSession(reporters ...cleaner.Reporter) (*session, error) {
	cfg, _, err := conf.Load(ConfigPath)
	if err != nil {
		return nil, err
	}

	s := &session{conf: cfg}
	opts := []cleaner.Option{}
	if cfg.History.Enabled {
		ledger, err := history.Open(cfg.History.Path)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.History.Path).Msg("run history disabled")
		} else {
			s.ledger = ledger
			opts = append(opts, cleaner.WithLedger(ledger))
		}
	}
	if len(reporters) > 0 {
		opts = append(opts, cleaner.WithReporters(reporters...))
	}

	s.m, err = cleaner.New(cfg, opts...)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) Close() {
	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			log.Debug().Err(err).Msg("failed to close history")
		}
	}
}
